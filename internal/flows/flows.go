// Package flows composes session primitives into the application's user
// flows. Flows perform the same action sequence whatever the input; they never
// judge the outcome and only return engine errors.
package flows

import (
	"strings"

	"github.com/v0xg/bookcheck/internal/browser"
	"github.com/v0xg/bookcheck/internal/randutil"
)

// Selectors shared by the flows and the scenarios.
const (
	EmailInput    = `input[name=email]`
	PasswordInput = `input[name="password"]`
	ConfirmInput  = `input[name="confirm-pass"]`
	SubmitButton  = `input[type="submit"]`

	CreateLink = `a[href="/create"]`
	CreateForm = `#create-form`
	TitleInput = `#title`
	DescInput  = `#description`
	ImageInput = `#image`
	TypeSelect = `#type`
)

// Placeholders substituted for unset Book fields.
const (
	DefaultDescription = "This is a test book description"
	DefaultImageURL    = "https://example.com/book-image.jpg"
	DefaultType        = "Fiction"
)

// Endpoints are the absolute URLs of the application's pages.
type Endpoints struct {
	Home     string
	Login    string
	Register string
	Catalog  string
	Create   string
}

// NewEndpoints derives the page URLs from the application's base URL.
func NewEndpoints(baseURL string) Endpoints {
	base := strings.TrimRight(baseURL, "/")
	return Endpoints{
		Home:     base + "/",
		Login:    base + "/login",
		Register: base + "/register",
		Catalog:  base + "/catalog",
		Create:   base + "/create",
	}
}

// Credentials is an email and password pair.
type Credentials struct {
	Email    string
	Password string
}

// Book describes the create form's input. A nil field is replaced by a valid
// placeholder; a pointer to "" submits the field empty.
type Book struct {
	Title       *string
	Description *string
	ImageURL    *string
	Type        *string
}

// Str returns a pointer to v, for Book literals.
func Str(v string) *string {
	return &v
}

func orDefault(v *string, def func() string) string {
	if v != nil {
		return *v
	}
	return def()
}

func constant(v string) func() string {
	return func() string { return v }
}

// Resolved returns the field values that will be submitted.
func (b Book) Resolved() (title, description, imageURL, typ string) {
	return orDefault(b.Title, randutil.BookTitle),
		orDefault(b.Description, constant(DefaultDescription)),
		orDefault(b.ImageURL, constant(DefaultImageURL)),
		orDefault(b.Type, constant(DefaultType))
}

// Login opens the login page, fills both fields and submits.
func Login(s *browser.Session, e Endpoints, email, password string) error {
	if err := s.Navigate(e.Login); err != nil {
		return err
	}
	if err := s.Fill(EmailInput, email); err != nil {
		return err
	}
	if err := s.Fill(PasswordInput, password); err != nil {
		return err
	}
	return s.Submit(SubmitButton)
}

// Register opens the registration page, fills all three fields and submits.
func Register(s *browser.Session, e Endpoints, email, password, confirm string) error {
	if err := s.Navigate(e.Register); err != nil {
		return err
	}
	for _, f := range []struct{ selector, value string }{
		{EmailInput, email},
		{PasswordInput, password},
		{ConfirmInput, confirm},
	} {
		if err := s.Fill(f.selector, f.value); err != nil {
			return err
		}
	}
	return s.Submit(SubmitButton)
}

// OpenCreateForm follows the "Add Book" link and waits for the form.
func OpenCreateForm(s *browser.Session) error {
	if err := s.Click(CreateLink); err != nil {
		return err
	}
	_, err := s.WaitElement(CreateForm)
	return err
}

// AddBook opens the create form from an authenticated page, fills it and
// submits.
func AddBook(s *browser.Session, b Book) error {
	if err := OpenCreateForm(s); err != nil {
		return err
	}

	title, description, imageURL, typ := b.Resolved()
	if err := s.Fill(TitleInput, title); err != nil {
		return err
	}
	if err := s.Fill(DescInput, description); err != nil {
		return err
	}
	if err := s.Fill(ImageInput, imageURL); err != nil {
		return err
	}
	if err := s.SelectOption(TypeSelect, typ); err != nil {
		return err
	}
	return s.Submit(SubmitButton)
}
