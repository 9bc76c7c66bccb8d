package testhelper

import (
	"context"
	"fmt"
	"sync"

	"github.com/shibukawa/snape2e/ui"
)

// FakeElement is an in-memory ui.Element
type FakeElement struct {
	Tag        string
	TextValue  string
	Value      string
	Attributes map[string]string
}

func (e *FakeElement) Text(context.Context) (string, error) { return e.TextValue, nil }

func (e *FakeElement) InputValue(context.Context) (string, error) { return e.Value, nil }

func (e *FakeElement) TagName(context.Context) (string, error) {
	if e.Tag == "" {
		return "div", nil
	}

	return e.Tag, nil
}

func (e *FakeElement) Attribute(_ context.Context, name string) (string, bool, error) {
	value, ok := e.Attributes[name]
	return value, ok, nil
}

// Texts builds div elements showing texts
func Texts(texts ...string) []ui.Element {
	elements := make([]ui.Element, len(texts))
	for i, text := range texts {
		elements[i] = &FakeElement{TextValue: text}
	}

	return elements
}

// FakeDriver is an in-memory ui.Driver. Fill stores the value in the first
// element of the selector, creating an input when none exists.
type FakeDriver struct {
	mu       sync.Mutex
	Pages    map[string]map[string][]ui.Element
	URL      string
	Clicks   []string
	Fills    map[string]string
	Shots    []string
	Closed   bool
	OnClick  func(selector string)
	elements map[string][]ui.Element
}

// NewFakeDriver creates a driver whose current page shows elements
func NewFakeDriver(elements map[string][]ui.Element) *FakeDriver {
	if elements == nil {
		elements = map[string][]ui.Element{}
	}

	return &FakeDriver{elements: elements, Fills: map[string]string{}}
}

// SetElements replaces the elements matched by selector
func (d *FakeDriver) SetElements(selector string, elements ...ui.Element) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.elements[selector] = elements
}

func (d *FakeDriver) Navigate(_ context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.URL = url
	if page, ok := d.Pages[url]; ok {
		d.elements = page
	}

	return nil
}

func (d *FakeDriver) Click(_ context.Context, selector string) error {
	d.mu.Lock()
	if _, ok := d.elements[selector]; !ok {
		d.mu.Unlock()
		return fmt.Errorf("no element for %s", selector)
	}

	d.Clicks = append(d.Clicks, selector)
	onClick := d.OnClick
	d.mu.Unlock()

	if onClick != nil {
		onClick(selector)
	}

	return nil
}

func (d *FakeDriver) Fill(_ context.Context, selector, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Fills[selector] = value

	if elements := d.elements[selector]; len(elements) > 0 {
		if el, ok := elements[0].(*FakeElement); ok {
			el.Value = value
			return nil
		}
	}

	d.elements[selector] = []ui.Element{&FakeElement{Tag: "input", Value: value}}

	return nil
}

func (d *FakeDriver) VisibleElements(_ context.Context, selector string) ([]ui.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]ui.Element(nil), d.elements[selector]...), nil
}

func (d *FakeDriver) Screenshot(_ context.Context, path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Shots = append(d.Shots, path)

	return nil
}

func (d *FakeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Closed = true

	return nil
}
