package view

import (
	"strings"

	"github.com/Skotchmaster/revoshop/internal/cart"
	"github.com/Skotchmaster/revoshop/internal/checkout"
	"github.com/Skotchmaster/revoshop/internal/models"
	"github.com/Skotchmaster/revoshop/internal/shopapi"
	"github.com/Skotchmaster/revoshop/internal/validation"
)

type HomeData struct {
	Products    []models.Product
	Page        int
	Size        int
	View        string
	HasNext     bool
	Unavailable bool
}

type ProductData struct {
	Product models.Product
	Related []models.Product
}

type SearchData struct {
	Query      string
	Category   int
	Categories []models.Category
	Products   []models.Product
}

type CategoriesData struct {
	Categories  []models.Category
	Unavailable bool
}

type CartData struct {
	Lines    []cart.Line
	Subtotal float64
}

type CheckoutData struct {
	Lines    []cart.Line
	Subtotal float64
	Form     checkout.ShippingDetails
	Errors   validation.FieldErrors
}

type SuccessData struct {
	Order *models.Order
}

type LoginData struct {
	Email       string
	CallbackURL string
	Failed      bool
	Errors      validation.FieldErrors
}

// ProductForm is the admin create/update form. Images holds one URL per line.
type ProductForm struct {
	Title       string  `form:"title"`
	Price       float64 `form:"price"`
	Description string  `form:"description"`
	CategoryID  int     `form:"categoryId"`
	Images      string  `form:"images"`
}

func (f ProductForm) Input() shopapi.ProductInput {
	in := shopapi.ProductInput{
		Title:       strings.TrimSpace(f.Title),
		Price:       f.Price,
		Description: strings.TrimSpace(f.Description),
		CategoryID:  f.CategoryID,
	}
	for _, line := range strings.Split(f.Images, "\n") {
		if u := strings.TrimSpace(line); u != "" {
			in.Images = append(in.Images, u)
		}
	}
	return in
}

type AdminData struct {
	Products    []models.Product
	Categories  []models.Category
	Form        ProductForm
	Errors      validation.FieldErrors
	Unavailable bool
}

type ErrorData struct {
	Status  int
	Message string
}
