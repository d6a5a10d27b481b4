package handler

import (
	"strings"
	"time"

	"github.com/merchkit/storefront/internal/domain/cart"
	"github.com/merchkit/storefront/internal/domain/order"
	"github.com/merchkit/storefront/internal/domain/pricing"
	"github.com/merchkit/storefront/internal/domain/product"
	"github.com/merchkit/storefront/internal/domain/user"
)

// Monetary values cross the wire as JSON numbers with two decimal places
// already applied by the pricing package.

type productView struct {
	ID          string   `json:"id"`
	SKU         string   `json:"sku"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       float64  `json:"price"`
	Category    string   `json:"category,omitempty"`
	Image       string   `json:"image,omitempty"`
	Sizes       []string `json:"sizes,omitempty"`
	Colors      []string `json:"colors,omitempty"`
}

func (h *Handler) productView(p product.Product) productView {
	image := p.ImageURL
	if image != "" && h.imageBaseURL != "" && !strings.Contains(image, "://") {
		image = strings.TrimSuffix(h.imageBaseURL, "/") + "/" + strings.TrimPrefix(image, "/")
	}
	return productView{
		ID:          p.ID,
		SKU:         p.SKU,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.InexactFloat64(),
		Category:    p.Category,
		Image:       image,
		Sizes:       p.Sizes,
		Colors:      p.Colors,
	}
}

type totalsView struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Shipping float64 `json:"shipping"`
	Total    float64 `json:"total"`
}

func newTotalsView(t pricing.Totals) totalsView {
	return totalsView{
		Subtotal: t.Subtotal.InexactFloat64(),
		Tax:      t.Tax.InexactFloat64(),
		Shipping: t.Shipping.InexactFloat64(),
		Total:    t.Total.InexactFloat64(),
	}
}

type cartItemView struct {
	Product   productView `json:"product"`
	Quantity  int         `json:"quantity"`
	Size      string      `json:"size,omitempty"`
	Color     string      `json:"color,omitempty"`
	LineTotal float64     `json:"lineTotal"`
}

type cartView struct {
	Items   []cartItemView `json:"items"`
	Totals  totalsView     `json:"totals"`
	Deleted bool           `json:"deleted,omitempty"`
}

func (h *Handler) cartView(v *cart.View) cartView {
	items := make([]cartItemView, len(v.Items))
	for i, it := range v.Items {
		items[i] = cartItemView{
			Product:   h.productView(it.Product),
			Quantity:  it.Quantity,
			Size:      it.Size,
			Color:     it.Color,
			LineTotal: it.LineTotal.InexactFloat64(),
		}
	}
	return cartView{
		Items:   items,
		Totals:  newTotalsView(v.Totals),
		Deleted: v.Deleted,
	}
}

type orderItemView struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Size      string  `json:"size,omitempty"`
	Color     string  `json:"color,omitempty"`
	UnitPrice float64 `json:"unitPrice"`
}

type orderView struct {
	ID              string                `json:"id"`
	Items           []orderItemView       `json:"items"`
	ShippingAddress order.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                `json:"paymentMethod,omitempty"`
	Email           string                `json:"email,omitempty"`
	Subtotal        float64               `json:"subtotal"`
	Tax             float64               `json:"tax"`
	Shipping        float64               `json:"shipping"`
	Total           float64               `json:"total"`
	Status          string                `json:"status"`
	IsPaid          bool                  `json:"isPaid"`
	PaidAt          *time.Time            `json:"paidAt,omitempty"`
	CreatedAt       time.Time             `json:"createdAt"`
	Products        []productView         `json:"products,omitempty"`
}

func (h *Handler) orderView(o *order.Order) orderView {
	items := make([]orderItemView, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemView{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Size:      it.Size,
			Color:     it.Color,
			UnitPrice: it.UnitPrice.InexactFloat64(),
		}
	}
	return orderView{
		ID:              o.ID,
		Items:           items,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		Email:           o.Email,
		Subtotal:        o.Subtotal.InexactFloat64(),
		Tax:             o.Tax.InexactFloat64(),
		Shipping:        o.Shipping.InexactFloat64(),
		Total:           o.Total.InexactFloat64(),
		Status:          string(o.Status),
		IsPaid:          o.IsPaid,
		PaidAt:          o.PaidAt,
		CreatedAt:       o.CreatedAt,
	}
}

func (h *Handler) placedOrderView(res *order.PlaceOrderResult) orderView {
	v := h.orderView(res.Order)
	v.Products = make([]productView, len(res.Products))
	for i, p := range res.Products {
		v.Products[i] = h.productView(p)
	}
	return v
}

type userView struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	FirstName string         `json:"firstName,omitempty"`
	LastName  string         `json:"lastName,omitempty"`
	IsAdmin   bool           `json:"isAdmin"`
	Favorites []string       `json:"favorites"`
	Addresses []user.Address `json:"addresses"`
	CreatedAt time.Time      `json:"createdAt"`
}

func newUserView(u *user.User) userView {
	favorites := u.Favorites
	if favorites == nil {
		favorites = []string{}
	}
	addresses := u.Addresses
	if addresses == nil {
		addresses = []user.Address{}
	}
	return userView{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsAdmin:   u.IsAdmin,
		Favorites: favorites,
		Addresses: addresses,
		CreatedAt: u.CreatedAt,
	}
}
