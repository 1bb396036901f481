package screens

import (
	"context"
	"errors"
	"strings"
	"sync"

	"pizzachallenge/internal/gateway"
	"pizzachallenge/internal/models"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	msgInvalidForm  = "Please fill in all fields correctly"
	msgUserAdded    = "User added successfully"
	msgGenericError = "Something went wrong! Please try again."
)

// ErrInvalidForm is returned when the registration form fails validation.
// Nothing is sent to the backend.
var ErrInvalidForm = errors.New("registration form is invalid")

// RegistrationForm is the registration input. Age 0 means "not entered".
type RegistrationForm struct {
	Name   string `validate:"required,max=100"`
	Age    int    `validate:"gt=0"`
	Gender string `validate:"oneof=male female"`
}

// RegistrationView is what the registration page renders
type RegistrationView struct {
	Form   RegistrationForm
	Error  string
	Notice *Notice
}

// Registration creates users from a form
type Registration struct {
	gateway  gateway.Gateway
	validate *validator.Validate

	mu   sync.Mutex
	form RegistrationForm
	err  string
	notices
}

func NewRegistration(gw gateway.Gateway) *Registration {
	return &Registration{
		gateway:  gw,
		validate: validator.New(),
	}
}

// Submit validates the form and creates the user. A valid submission that
// succeeds resets the form; a failed one keeps the input for editing.
func (r *Registration) Submit(ctx context.Context, form RegistrationForm) (*models.User, error) {
	form.Name = strings.TrimSpace(form.Name)
	form.Gender = strings.ToLower(strings.TrimSpace(form.Gender))

	r.mu.Lock()
	r.form = form
	if err := r.validate.Struct(&form); err != nil {
		r.err = msgInvalidForm
		r.mu.Unlock()
		return nil, ErrInvalidForm
	}
	r.err = ""
	r.mu.Unlock()

	reqCtx, cancel := dispatchContext(ctx)
	defer cancel()

	user, err := r.gateway.CreateUser(reqCtx, models.CreateUserRequest{
		Name:   form.Name,
		Age:    form.Age,
		Gender: form.Gender,
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		zap.L().Warn("failed to register user", zap.String("name", form.Name), zap.Error(err))
		r.failure(msgGenericError)
		return nil, err
	}

	r.form = RegistrationForm{}
	r.success(msgUserAdded)
	return user, nil
}

// View returns the form state and consumes the pending notice
func (r *Registration) View() RegistrationView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RegistrationView{
		Form:   r.form,
		Error:  r.err,
		Notice: r.take(),
	}
}
