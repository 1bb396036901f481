package screens

import (
	"errors"

	"pizzachallenge/internal/models"
)

// ErrExceedsBalance is returned when adding a slice would cost more than the
// user can pay.
var ErrExceedsBalance = errors.New("cart total would exceed the balance")

// CartItem is one cart line
type CartItem struct {
	Slice    models.PizzaSlice
	Quantity int
}

// Subtotal is price times quantity
func (i CartItem) Subtotal() int {
	return i.Slice.Price * i.Quantity
}

// Cart holds the slices picked for one purchase. It lives only while the
// purchase modal is open.
type Cart struct {
	balance int
	items   []CartItem
}

// NewCart creates an empty cart for a user holding balance coins
func NewCart(balance int) *Cart {
	return &Cart{balance: balance}
}

// Balance is the balance the cart is checked against
func (c *Cart) Balance() int {
	return c.balance
}

// SetBalance updates the balance after a fresher user fetch
func (c *Cart) SetBalance(balance int) {
	c.balance = balance
}

// CanAdd reports whether one more unit of slice fits in the balance
func (c *Cart) CanAdd(slice models.PizzaSlice) bool {
	return c.Total()+slice.Price <= c.balance
}

// Add increments the slice's quantity or inserts a new line. It never
// clamps: an addition that does not fit is rejected.
func (c *Cart) Add(slice models.PizzaSlice) error {
	if !c.CanAdd(slice) {
		return ErrExceedsBalance
	}
	for i := range c.items {
		if c.items[i].Slice.ID == slice.ID {
			c.items[i].Quantity++
			return nil
		}
	}
	c.items = append(c.items, CartItem{Slice: slice, Quantity: 1})
	return nil
}

// Remove decrements the slice's quantity and drops the line at zero
func (c *Cart) Remove(sliceID uint) {
	for i := range c.items {
		if c.items[i].Slice.ID != sliceID {
			continue
		}
		c.items[i].Quantity--
		if c.items[i].Quantity <= 0 {
			c.items = append(c.items[:i], c.items[i+1:]...)
		}
		return
	}
}

// Quantity returns how many units of a slice are in the cart
func (c *Cart) Quantity(sliceID uint) int {
	for _, item := range c.items {
		if item.Slice.ID == sliceID {
			return item.Quantity
		}
	}
	return 0
}

// Total is the cost of every line
func (c *Cart) Total() int {
	total := 0
	for _, item := range c.items {
		total += item.Subtotal()
	}
	return total
}

func (c *Cart) Empty() bool {
	return len(c.items) == 0
}

// CanComplete reports whether the cart may be submitted
func (c *Cart) CanComplete() bool {
	return !c.Empty() && c.Total() <= c.balance
}

// Items returns a copy of the cart lines
func (c *Cart) Items() []CartItem {
	items := make([]CartItem, len(c.items))
	copy(items, c.items)
	return items
}

// Request builds the purchase request for userID
func (c *Cart) Request(userID uint) models.PurchaseRequest {
	req := models.PurchaseRequest{
		UserID: userID,
		Items:  make([]models.PurchaseItem, 0, len(c.items)),
	}
	for _, item := range c.items {
		req.Items = append(req.Items, models.PurchaseItem{
			SliceID:  item.Slice.ID,
			Quantity: item.Quantity,
		})
	}
	return req
}
