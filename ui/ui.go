// Package ui defines what the harness needs from a UI automation driver and
// how displayed values are read from elements.
package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/shibukawa/snape2e"
)

// Element is one rendered element
type Element interface {
	Text(ctx context.Context) (string, error)
	InputValue(ctx context.Context) (string, error)
	TagName(ctx context.Context) (string, error)
	// Attribute returns the attribute value; ok is false when it is absent
	Attribute(ctx context.Context, name string) (value string, ok bool, err error)
}

// Driver controls a page
type Driver interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	// VisibleElements returns the visible elements matching selector in document order
	VisibleElements(ctx context.Context, selector string) ([]Element, error)
	Screenshot(ctx context.Context, path string) error
	Close() error
}

// Property selects what is read from an element. The zero value reads the
// displayed value.
type Property struct {
	Attribute string
}

// Attr reads the named attribute
func Attr(name string) Property {
	return Property{Attribute: name}
}

// ValueOf reads the value of el selected by prop. For the displayed value,
// input and textarea elements report their input value; other elements
// report their text, falling back to the input value when the text is empty.
func ValueOf(ctx context.Context, el Element, prop Property) (string, error) {
	if prop.Attribute != "" {
		value, _, err := el.Attribute(ctx, prop.Attribute)
		if err != nil {
			return "", fmt.Errorf("failed to read attribute '%s': %w", prop.Attribute, err)
		}

		return value, nil
	}

	tag, err := el.TagName(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read tag name: %w", err)
	}

	switch strings.ToLower(tag) {
	case "input", "textarea":
		return el.InputValue(ctx)
	}

	text, err := el.Text(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read text: %w", err)
	}

	if text != "" {
		return text, nil
	}

	return el.InputValue(ctx)
}

// Values reads prop from every visible element matching selector.
// A selector without visible matches is an error.
func Values(ctx context.Context, d Driver, selector string, prop Property) ([]string, error) {
	elements, err := d.VisibleElements(ctx, selector)
	if err != nil {
		return nil, err
	}

	if len(elements) == 0 {
		return nil, fmt.Errorf("%w: %s", snape2e.ErrElementNotFound, selector)
	}

	values := make([]string, 0, len(elements))

	for i, el := range elements {
		value, err := ValueOf(ctx, el, prop)
		if err != nil {
			return nil, fmt.Errorf("%s [%d]: %w", selector, i, err)
		}

		values = append(values, value)
	}

	return values, nil
}
