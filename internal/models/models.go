package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ID is a product identifier. The upstream catalog sends numbers, the cart
// and the registry use strings; both decode into the same value.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

type Category struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug,omitempty"`
	Image string `json:"image,omitempty"`
}

type Product struct {
	ID          ID        `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug,omitempty"`
	Price       float64   `json:"price"`
	Description string    `json:"description,omitempty"`
	Images      []string  `json:"images"`
	Category    *Category `json:"category,omitempty"`
	Sizes       []string  `json:"sizes,omitempty"`
	Discount    *float64  `json:"discount,omitempty"`
	OldPrice    *float64  `json:"oldPrice,omitempty"`
	Rating      *float64  `json:"rating,omitempty"`
	UpdatedAt   string    `json:"updatedAt,omitempty"`

	Unavailable bool `json:"-"`
}

// FirstImage returns the first usable image URL. The upstream catalog
// sometimes stores a JSON-encoded array inside the first element.
func (p Product) FirstImage() string {
	for _, img := range p.Images {
		img = strings.Trim(img, `[]" `)
		if strings.HasPrefix(img, "http") {
			return img
		}
	}
	return ""
}

func (p Product) CategoryName() string {
	if p.Category == nil {
		return ""
	}
	return p.Category.Name
}

type User struct {
	ID           uuid.UUID `gorm:"type:char(36);primaryKey"     json:"id"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name         string    `gorm:"not null"                  json:"name"`
	PasswordHash string    `gorm:"not null"                  json:"-"`
	Role         string    `gorm:"not null;default:user"     json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (u User) IsAdmin() bool { return u.Role == "admin" }

type Session struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey"        json:"id"`
	JTI       string    `gorm:"uniqueIndex;size:64;not null" json:"jti"`
	UserID    uuid.UUID `gorm:"type:char(36);index;not null"   json:"user_id"`
	ExpiresAt time.Time `gorm:"not null"                   json:"expires_at"`
	Revoked   bool      `gorm:"default:false"              json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

type CartEntry struct {
	CartKey   string         `gorm:"column:cart_key;primaryKey;size:128" json:"cart_key"`
	Value     datatypes.JSON `gorm:"not null"                            json:"value"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (CartEntry) TableName() string {
	return "cart_entries"
}

type Order struct {
	ID        uuid.UUID   `gorm:"type:char(36);primaryKey"      json:"id"`
	UserID    uuid.UUID   `gorm:"type:char(36);index;not null" json:"user_id"`
	Email     string      `gorm:"not null"                 json:"email"`
	CartID    string      `gorm:"size:64;index"            json:"cart_id"`
	Subtotal  float64     `gorm:"not null"                 json:"subtotal"`
	Address   string      `gorm:"not null"                 json:"address"`
	City      string      `gorm:"not null"                 json:"city"`
	State     string      `gorm:"not null"                 json:"state"`
	ZipCode   string      `gorm:"not null"                 json:"zip_code"`
	Country   string      `gorm:"not null"                 json:"country"`
	Phone     string      `gorm:"not null"                 json:"phone"`
	Items     []OrderItem `gorm:"constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt time.Time   `json:"created_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

type OrderItem struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey"        json:"id"`
	OrderID   uuid.UUID `gorm:"type:char(36);index;not null"   json:"order_id"`
	ProductID string    `gorm:"size:64;not null"           json:"product_id"`
	Title     string    `gorm:"not null"                   json:"title"`
	Price     float64   `gorm:"not null"                   json:"price"`
	Quantity  int       `gorm:"not null;check:quantity>0"  json:"quantity"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// All lists every persisted model, in migration order.
func All() []any {
	return []any{&User{}, &Session{}, &CartEntry{}, &Order{}, &OrderItem{}}
}

// ParseCategoryID accepts the category filter from a query string.
func ParseCategoryID(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
