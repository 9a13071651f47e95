package browser

import (
	"encoding/json"
	"fmt"
)

// PageMap is a compact description of what a page offered when it was
// captured. Failure reports and triage prompts carry it.
type PageMap struct {
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Elements   []Element `json:"elements"`
	Navigation []NavItem `json:"navigation"`
}

// Element is an interactive element on the page.
type Element struct {
	Selector    string `json:"selector"`
	Type        string `json:"type"` // button, input type, link, select
	Text        string `json:"text,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Name        string `json:"name,omitempty"`
	ID          string `json:"id,omitempty"`
}

// NavItem is a navigation link.
type NavItem struct {
	Selector string `json:"selector"`
	Text     string `json:"text"`
	Href     string `json:"href"`
}

const snapshotJS = `() => {
	function selectorFor(el) {
		if (el.id) return '#' + el.id;
		if (el.name) return el.tagName.toLowerCase() + '[name="' + el.name + '"]';
		if (el.tagName === 'A' && el.getAttribute('href')) return 'a[href="' + el.getAttribute('href') + '"]';
		if (el.className && typeof el.className === 'string') {
			const cls = el.className.trim().split(/\s+/).slice(0, 2).join('.');
			if (cls) return el.tagName.toLowerCase() + '.' + cls;
		}
		return el.tagName.toLowerCase();
	}
	const seen = new Set();
	const elements = [];
	document.querySelectorAll('button, input, textarea, select, a[href]').forEach(el => {
		if (!el.offsetParent || el.type === 'hidden') return;
		const selector = selectorFor(el);
		if (seen.has(selector)) return;
		seen.add(selector);
		let type = el.tagName === 'A' ? 'link' : (el.tagName === 'SELECT' ? 'select' : (el.type || 'button'));
		elements.push({
			selector: selector,
			type: type,
			text: (el.textContent || el.value || '').trim().slice(0, 50),
			placeholder: el.placeholder || '',
			name: el.name || '',
			id: el.id || ''
		});
	});
	const navigation = [];
	const hrefs = new Set();
	document.querySelectorAll('nav a, header a, [role="navigation"] a').forEach(el => {
		const href = el.getAttribute('href');
		if (!href || href === '#' || hrefs.has(href)) return;
		hrefs.add(href);
		navigation.push({
			selector: el.id ? '#' + el.id : 'a[href="' + href + '"]',
			text: (el.textContent || '').trim().slice(0, 30),
			href: href
		});
	});
	return JSON.stringify({
		url: window.location.href,
		title: document.title,
		elements: elements,
		navigation: navigation
	});
}`

// Snapshot extracts the current page map. It needs a live JavaScript context,
// so it fails while a dialog is open. Like Screenshot it ignores the
// scenario deadline.
func (s *Session) Snapshot() (*PageMap, error) {
	res, err := s.detached().Eval(snapshotJS)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	var pm PageMap
	if err := json.Unmarshal([]byte(res.Value.String()), &pm); err != nil {
		return nil, fmt.Errorf("decode page map: %w", err)
	}
	return &pm, nil
}

// Summary is a one-line digest of the page map.
func (pm *PageMap) Summary() string {
	if pm == nil {
		return "no page map"
	}
	return fmt.Sprintf("%s (%q): %d interactive elements, %d nav links", pm.URL, pm.Title, len(pm.Elements), len(pm.Navigation))
}
