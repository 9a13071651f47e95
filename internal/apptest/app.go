// Package apptest serves an in-process stand-in for the book catalog
// application. It reproduces the page contract the scenarios depend on:
// routes, selectors, client-side "All fields are required!" alerts and
// redirects to /catalog.
package apptest

import (
	"encoding/base64"
	"html/template"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Seeded credentials, matching the default config.
const (
	SeedEmail    = "john@abv.bg"
	SeedPassword = "123456"
)

const sessionCookie = "bookcheck_session"

// Options toggle faults so tests can exercise failure paths.
type Options struct {
	// NoClientValidation submits forms without the alert check.
	NoClientValidation bool
	// AlertOnCatalog raises an alert every time the catalog loads.
	AlertOnCatalog bool
	// EmptyCatalog starts with no books.
	EmptyCatalog bool
	// HideUserMarker renders #user > span with display:none.
	HideUserMarker bool
	// BrokenEntryLayout drops the "Type:" label from catalog entries and
	// moves the Details link above the cover.
	BrokenEntryLayout bool
}

// Book is a catalog entry.
type Book struct {
	ID          int
	Title       string
	Description string
	ImageURL    string
	Type        string
	Owner       string
}

// App is a running fake application.
type App struct {
	URL    string
	server *httptest.Server
	opts   Options

	mu    sync.Mutex
	users map[string]string
	books []Book
}

// New starts the application on a loopback port.
func New(opts Options) *App {
	a := &App{
		opts:  opts,
		users: map[string]string{SeedEmail: SeedPassword},
	}
	if !opts.EmptyCatalog {
		a.books = append(a.books, Book{
			ID:          1,
			Title:       "Outlander",
			Description: "A seeded book.",
			ImageURL:    "/static/cover.gif",
			Type:        "Fiction",
			Owner:       SeedEmail,
		})
	}

	r := chi.NewRouter()
	r.Get("/static/cover.gif", cover)
	r.Get("/", a.home)
	r.Get("/login", a.loginPage)
	r.Post("/login", a.login)
	r.Get("/register", a.registerPage)
	r.Post("/register", a.register)
	r.Get("/logout", a.logout)
	r.Get("/catalog", a.catalog)
	r.Get("/details/{id}", a.details)
	r.Group(func(r chi.Router) {
		r.Use(a.requireUser)
		r.Get("/profile", a.profile)
		r.Get("/create", a.createPage)
		r.Post("/create", a.create)
	})

	a.server = httptest.NewServer(r)
	a.URL = a.server.URL
	return a
}

// Close stops the server.
func (a *App) Close() {
	a.server.Close()
}

// Users returns a copy of the registered accounts.
func (a *App) Users() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]string, len(a.users))
	for k, v := range a.users {
		out[k] = v
	}
	return out
}

// Books returns a copy of the catalog.
func (a *App) Books() []Book {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Book(nil), a.books...)
}

func (a *App) currentUser(r *http.Request) string {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.users[c.Value]; !ok {
		return ""
	}
	return c.Value
}

func (a *App) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.currentUser(r) == "" {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type pageData struct {
	User       string
	HideUser   bool
	Validate   bool
	Alert      bool
	Broken     bool
	Books      []Book
	Book       *Book
	ErrorParam string
}

func (a *App) render(w http.ResponseWriter, r *http.Request, name string, data pageData) {
	data.User = a.currentUser(r)
	data.HideUser = a.opts.HideUserMarker
	data.Validate = !a.opts.NoClientValidation
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (a *App) setSession(w http.ResponseWriter, email string) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: email, Path: "/", HttpOnly: true})
}

func (a *App) home(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "home", pageData{})
}

func (a *App) loginPage(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "login", pageData{ErrorParam: r.URL.Query().Get("error")})
}

func (a *App) login(w http.ResponseWriter, r *http.Request) {
	email, password := r.FormValue("email"), r.FormValue("password")
	a.mu.Lock()
	stored, ok := a.users[email]
	a.mu.Unlock()
	if email == "" || !ok || stored != password {
		http.Redirect(w, r, "/login?error=1", http.StatusFound)
		return
	}
	a.setSession(w, email)
	http.Redirect(w, r, "/catalog", http.StatusFound)
}

func (a *App) registerPage(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "register", pageData{})
}

func (a *App) register(w http.ResponseWriter, r *http.Request) {
	email, password, confirm := r.FormValue("email"), r.FormValue("password"), r.FormValue("confirm-pass")
	if email == "" || password == "" || password != confirm {
		http.Redirect(w, r, "/register?error=1", http.StatusFound)
		return
	}
	a.mu.Lock()
	_, exists := a.users[email]
	if !exists {
		a.users[email] = password
	}
	a.mu.Unlock()
	if exists {
		http.Redirect(w, r, "/register?error=exists", http.StatusFound)
		return
	}
	a.setSession(w, email)
	http.Redirect(w, r, "/catalog", http.StatusFound)
}

func (a *App) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/", http.StatusFound)
}

func (a *App) catalog(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "catalog", pageData{Books: a.Books(), Alert: a.opts.AlertOnCatalog, Broken: a.opts.BrokenEntryLayout})
}

func (a *App) details(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	for _, b := range a.Books() {
		if b.ID == id {
			book := b
			a.render(w, r, "details", pageData{Book: &book})
			return
		}
	}
	http.NotFound(w, r)
}

func (a *App) profile(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(r)
	var mine []Book
	for _, b := range a.Books() {
		if b.Owner == user {
			mine = append(mine, b)
		}
	}
	a.render(w, r, "profile", pageData{Books: mine})
}

func (a *App) createPage(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "create", pageData{})
}

func (a *App) create(w http.ResponseWriter, r *http.Request) {
	b := Book{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		ImageURL:    r.FormValue("imageUrl"),
		Type:        r.FormValue("type"),
		Owner:       a.currentUser(r),
	}
	if b.Title == "" || b.Description == "" || b.ImageURL == "" || b.Type == "" {
		http.Redirect(w, r, "/create?error=1", http.StatusFound)
		return
	}
	a.mu.Lock()
	b.ID = len(a.books) + 1
	a.books = append(a.books, b)
	a.mu.Unlock()
	http.Redirect(w, r, "/catalog", http.StatusFound)
}

// pixel is a 1x1 transparent GIF.
var pixel, _ = base64.StdEncoding.DecodeString("R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7")

func cover(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "image/gif")
	_, _ = w.Write(pixel)
}

var pages = template.Must(template.New("pages").Parse(`
{{define "nav"}}
<nav>
	<a href="/catalog">Dashboard</a>
	{{if .User}}
	<div id="user">
		<span{{if .HideUser}} style="display:none"{{end}}>Welcome, {{.User}}</span>
		<a href="/profile">My Books</a>
		<a href="/create">Add Book</a>
		<a href="/logout">Logout</a>
	</div>
	{{else}}
	<div id="guest">
		<a href="/login">Login</a>
		<a href="/register">Register</a>
	</div>
	{{end}}
</nav>
{{end}}

{{define "validate"}}
{{if .Validate}}
<script>
document.querySelector('form').addEventListener('submit', function (e) {
	var fields = Array.prototype.slice.call(this.querySelectorAll('input:not([type=submit]), textarea, select'));
	var empty = fields.some(function (f) { return f.value.trim() === ''; });
	var pass = this.querySelector('[name=password]');
	var confirm = this.querySelector('[name="confirm-pass"]');
	if (empty || (confirm && pass.value !== confirm.value)) {
		e.preventDefault();
		alert('All fields are required!');
	}
});
</script>
{{end}}
{{end}}

{{define "home"}}<!doctype html><html><head><title>Book Library</title></head><body>
{{template "nav" .}}
<section id="welcome"><h1>Welcome to the book library</h1></section>
</body></html>{{end}}

{{define "login"}}<!doctype html><html><head><title>Login</title></head><body>
{{template "nav" .}}
<section id="login-page">
{{if .ErrorParam}}<p class="notification">Invalid email or password.</p>{{end}}
<form id="login-form" method="POST" action="/login">
	<label for="email">Email</label><input type="text" name="email" id="email">
	<label for="password">Password</label><input type="password" name="password" id="password">
	<input class="button submit" type="submit" value="Login">
</form>
</section>
{{template "validate" .}}
</body></html>{{end}}

{{define "register"}}<!doctype html><html><head><title>Register</title></head><body>
{{template "nav" .}}
<section id="register-page">
<form id="register-form" method="POST" action="/register">
	<label for="email">Email</label><input type="text" name="email" id="email">
	<label for="password">Password</label><input type="password" name="password" id="password">
	<label for="repeat-pass">Repeat Password</label><input type="password" name="confirm-pass" id="repeat-pass">
	<input class="button submit" type="submit" value="Register">
</form>
</section>
{{template "validate" .}}
</body></html>{{end}}

{{define "catalog"}}<!doctype html><html><head><title>Dashboard</title>
{{if .Alert}}<script>alert('Catalog is under maintenance');</script>{{end}}
</head><body>
{{template "nav" .}}
<section id="dashboard-page" class="dashboard">
	<h1>Dashboard</h1>
	{{if .Books}}
	<ul class="other-books-list">
		{{range .Books}}{{if $.Broken}}
		<li class="otherBooks">
			<h3>{{.Title}}</h3>
			<a class="button" href="/details/{{.ID}}">Details</a>
			<p>{{.Type}}</p>
			<p class="img"><img src="{{.ImageURL}}"></p>
		</li>
		{{else}}
		<li class="otherBooks">
			<h3>{{.Title}}</h3>
			<p>Type: {{.Type}}</p>
			<p class="img"><img src="{{.ImageURL}}"></p>
			<a class="button" href="/details/{{.ID}}">Details</a>
		</li>
		{{end}}{{end}}
	</ul>
	{{else}}
	<p class="no-books">No books in database!</p>
	{{end}}
</section>
</body></html>{{end}}

{{define "details"}}<!doctype html><html><head><title>Details</title></head><body>
{{template "nav" .}}
<section id="details-page" class="details">
	<div class="book-information">
		<h3>{{.Book.Title}}</h3>
		<p class="type">Type: {{.Book.Type}}</p>
		<p class="img"><img src="{{.Book.ImageURL}}"></p>
	</div>
	<div class="book-description">
		<h3>Description:</h3>
		<p>{{.Book.Description}}</p>
	</div>
</section>
</body></html>{{end}}

{{define "profile"}}<!doctype html><html><head><title>My Books</title></head><body>
{{template "nav" .}}
<section id="my-books-page" class="my-books">
	<h1>My Books</h1>
	<ul class="my-books-list">
		{{range .Books}}<li class="otherBooks"><h3>{{.Title}}</h3><p>Type: {{.Type}}</p></li>{{end}}
	</ul>
</section>
</body></html>{{end}}

{{define "create"}}<!doctype html><html><head><title>Add Book</title></head><body>
{{template "nav" .}}
<section id="create-page" class="create">
<form id="create-form" method="POST" action="/create">
	<label for="title">Title</label><input type="text" name="title" id="title">
	<label for="description">Description</label><textarea name="description" id="description"></textarea>
	<label for="image">Image</label><input type="text" name="imageUrl" id="image">
	<label for="type">Type</label>
	<select id="type" name="type">
		<option value="Fiction" selected>Fiction</option>
		<option value="Romance">Romance</option>
		<option value="Mistery">Mistery</option>
		<option value="Classic">Classic</option>
		<option value="Other">Other</option>
	</select>
	<input class="button submit" type="submit" value="Add Book">
</form>
</section>
{{template "validate" .}}
</body></html>{{end}}
`))
