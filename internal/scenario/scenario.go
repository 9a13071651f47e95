// Package scenario defines the acceptance suite and runs it.
package scenario

import (
	"context"
	"regexp"

	"github.com/v0xg/bookcheck/internal/browser"
	"github.com/v0xg/bookcheck/internal/expect"
	"github.com/v0xg/bookcheck/internal/flows"
	"github.com/v0xg/bookcheck/internal/randutil"
)

// Groups, in suite order.
const (
	GroupHome     = "home"
	GroupLogin    = "login"
	GroupRegister = "register"
	GroupCreate   = "create"
	GroupCatalog  = "catalog"
	GroupDetails  = "details"
)

// Groups lists every group name.
var Groups = []string{GroupHome, GroupLogin, GroupRegister, GroupCreate, GroupCatalog, GroupDetails}

// Scenario is one independent acceptance check. Run gets a fresh session and
// the scenario's deadline; it returns nil on success.
type Scenario struct {
	Name  string
	Group string
	Run   func(ctx context.Context, s *browser.Session) error
}

// Filter keeps the scenarios whose name matches run (nil matches all) and
// whose group equals group ("" matches all).
func Filter(all []Scenario, run *regexp.Regexp, group string) []Scenario {
	var out []Scenario
	for _, sc := range all {
		if group != "" && sc.Group != group {
			continue
		}
		if run != nil && !run.MatchString(sc.Name) {
			continue
		}
		out = append(out, sc)
	}
	return out
}

// Suite returns every scenario against the given application.
func Suite(e flows.Endpoints, seed flows.Credentials) []Scenario {
	var all []Scenario
	add := func(group, name string, run func(s *browser.Session) error) {
		all = append(all, Scenario{
			Name:  name,
			Group: group,
			Run:   func(_ context.Context, s *browser.Session) error { return run(s) },
		})
	}

	login := func(s *browser.Session) error {
		return flows.Login(s, e, seed.Email, seed.Password)
	}
	// The guest nav already links to /catalog, so authenticated checks
	// start only once the login has landed there.
	toCatalog := func(s *browser.Session) error {
		if err := login(s); err != nil {
			return err
		}
		return expect.URL(s, e.Catalog)
	}

	// Guest home page.
	for _, link := range []struct{ name, selector string }{
		{`Verify "All Books" link is visible`, `a[href="/catalog"]`},
		{`Verify "Login" button is visible`, `a[href="/login"]`},
		{`Verify "Register" button is visible`, `a[href="/register"]`},
	} {
		add(GroupHome, link.name, func(s *browser.Session) error {
			if err := s.Navigate(e.Home); err != nil {
				return err
			}
			return expect.Visible(s, link.selector)
		})
	}

	// Login.
	for _, link := range []struct{ name, selector string }{
		{`Verify "All Books" link is visible after user login`, `a[href="/catalog"]`},
		{`Verify "My Books" link is visible after user login`, `a[href="/profile"]`},
		{`Verify "Add Book" link is visible after user login`, `a[href="/create"]`},
		{`Verify user's email address is visible after user login`, `#user > span`},
	} {
		add(GroupLogin, link.name, func(s *browser.Session) error {
			if err := toCatalog(s); err != nil {
				return err
			}
			return expect.Visible(s, link.selector)
		})
	}
	add(GroupLogin, "Submit login form with valid credentials", func(s *browser.Session) error {
		if err := login(s); err != nil {
			return err
		}
		return expect.URL(s, e.Catalog)
	})
	for _, tc := range []struct{ name, email, password string }{
		{"Submit login form with empty fields", "", ""},
		{"Submit login form with empty email input field", "", seed.Password},
		{"Submit login form with empty password input field", seed.Email, ""},
	} {
		add(GroupLogin, tc.name, func(s *browser.Session) error {
			exp := s.ExpectDialog()
			if err := flows.Login(s, e, tc.email, tc.password); err != nil {
				return err
			}
			return expect.DialogAndBlock(s, exp, e.Login, expect.RequiredFieldsAlert)
		})
	}

	// Registration. Identities are minted when the scenario runs.
	add(GroupRegister, "Submit register form with valid credentials", func(s *browser.Session) error {
		email, password := randutil.Email(), randutil.Password()
		if err := flows.Register(s, e, email, password, password); err != nil {
			return err
		}
		return expect.URL(s, e.Catalog)
	})
	for _, tc := range []struct {
		name  string
		creds func() (email, password, confirm string)
	}{
		{"Submit register form with empty fields", func() (string, string, string) {
			return "", "", ""
		}},
		{"Submit register form with empty email", func() (string, string, string) {
			p := randutil.Password()
			return "", p, p
		}},
		{"Submit register form with empty password", func() (string, string, string) {
			return randutil.Email(), "", ""
		}},
		{"Submit register form with different passwords", func() (string, string, string) {
			return randutil.Email(), randutil.Password(), "DifferenPa$$w0rd"
		}},
	} {
		add(GroupRegister, tc.name, func(s *browser.Session) error {
			email, password, confirm := tc.creds()
			exp := s.ExpectDialog()
			if err := flows.Register(s, e, email, password, confirm); err != nil {
				return err
			}
			return expect.DialogAndBlock(s, exp, e.Register, expect.RequiredFieldsAlert)
		})
	}

	// Book creation.
	add(GroupCreate, "Add book with correct data", func(s *browser.Session) error {
		if err := toCatalog(s); err != nil {
			return err
		}
		if err := flows.AddBook(s, flows.Book{}); err != nil {
			return err
		}
		return expect.URL(s, e.Catalog)
	})
	for _, tc := range []struct {
		name string
		book flows.Book
	}{
		{"Add book with empty title field", flows.Book{Title: flows.Str("")}},
		{"Add book with empty description field", flows.Book{Description: flows.Str("")}},
		{"Add book with empty imageUrl field", flows.Book{ImageURL: flows.Str("")}},
	} {
		add(GroupCreate, tc.name, func(s *browser.Session) error {
			if err := toCatalog(s); err != nil {
				return err
			}
			exp := s.ExpectDialog()
			if err := flows.AddBook(s, tc.book); err != nil {
				return err
			}
			return expect.DialogAndBlock(s, exp, e.Create, expect.RequiredFieldsAlert)
		})
	}

	// Catalog.
	add(GroupCatalog, "Verify All Books are displayed", func(s *browser.Session) error {
		if err := toCatalog(s); err != nil {
			return err
		}
		return expect.CatalogHasEntries(s, expect.DashboardContainer, expect.DashboardEntries)
	})

	// Details.
	openDetails := func(s *browser.Session) error {
		if err := expect.CatalogHasEntries(s, expect.CatalogEntry, expect.CatalogEntry); err != nil {
			return err
		}
		if err := s.Click(expect.DetailsButton); err != nil {
			return err
		}
		return expect.DetailsTitle(s)
	}
	add(GroupDetails, "Login and navigate to Details page", func(s *browser.Session) error {
		if err := toCatalog(s); err != nil {
			return err
		}
		return openDetails(s)
	})
	add(GroupDetails, "Verify That Guest User Sees Details Button and Button Works Correctly", func(s *browser.Session) error {
		if err := s.Navigate(e.Catalog); err != nil {
			return err
		}
		return openDetails(s)
	})
	add(GroupDetails, "Verify That All Info Is Displayed Correctly", func(s *browser.Session) error {
		if err := s.Navigate(e.Catalog); err != nil {
			return err
		}
		return expect.CatalogEntryLayout(s, expect.CatalogEntry)
	})

	return all
}
