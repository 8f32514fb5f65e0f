package automation

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/reclaim/internal/interfaces"
)

const (
	xpathUpper = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	xpathLower = "abcdefghijklmnopqrstuvwxyz"
)

// xpathLiteral quotes s for safe embedding in an XPath expression, using
// concat() when the text mixes quote characters.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

// containsTextCI builds an XPath predicate matching elements whose
// normalized text contains the given value, case-insensitively.
func containsTextCI(text string) string {
	lit := xpathLiteral(strings.ToLower(text))
	return fmt.Sprintf("contains(translate(normalize-space(.), '%s', '%s'), %s)", xpathUpper, xpathLower, lit)
}

func clickStrategy(name string, sel interfaces.Selector) Strategy {
	return Strategy{
		Name: name,
		Act: func(ctx context.Context, w interfaces.WidgetContext) error {
			return w.Click(ctx, sel)
		},
	}
}

// ClickTextStrategies builds the ordered chain for clicking a widget option
// by its visible label: real buttons first, then button-like containers,
// then any element carrying the text.
func ClickTextStrategies(text string) []Strategy {
	pred := containsTextCI(text)
	return []Strategy{
		clickStrategy("button-text", interfaces.XPath(fmt.Sprintf("//button[%s]", pred))),
		clickStrategy("role-button", interfaces.XPath(fmt.Sprintf("//*[@role='button'][%s]", pred))),
		clickStrategy("div-option", interfaces.XPath(fmt.Sprintf("//div[contains(@class, 'option') or contains(@class, 'button') or contains(@class, 'choice')][%s]", pred))),
		clickStrategy("span-text", interfaces.XPath(fmt.Sprintf("//span[%s]", pred))),
		clickStrategy("anchor-text", interfaces.XPath(fmt.Sprintf("//a[%s]", pred))),
		clickStrategy("any-text", interfaces.XPath(fmt.Sprintf("//*[%s][not(self::script)][not(self::style)]", pred))),
	}
}

// FillStrategies builds the ordered chain for filling a free-text field.
// The hint is matched against placeholder and aria-label attributes, then a
// label walk, then the visible-input scan fallbacks.
func FillStrategies(hint, value string) []Strategy {
	hintLower := strings.ToLower(hint)
	lit := xpathLiteral(hintLower)
	attrCI := func(attr string) string {
		return fmt.Sprintf("contains(translate(@%s, '%s', '%s'), %s)", attr, xpathUpper, xpathLower, lit)
	}

	fill := func(name string, sel interfaces.Selector) Strategy {
		return Strategy{
			Name: name,
			Act: func(ctx context.Context, w interfaces.WidgetContext) error {
				return w.Fill(ctx, sel, value)
			},
		}
	}

	return []Strategy{
		fill("placeholder", interfaces.CSS(fmt.Sprintf(`input[placeholder*="%s" i]`, hintLower))),
		fill("aria-label", interfaces.CSS(fmt.Sprintf(`input[aria-label*="%s" i]`, hintLower))),
		fill("textarea-placeholder", interfaces.CSS(fmt.Sprintf(`textarea[placeholder*="%s" i]`, hintLower))),
		fill("label-walk", interfaces.XPath(fmt.Sprintf("//label[%s]//input | //label[%s]/following::input[1]", attrCI("for"), containsTextCI(hint)))),
		fill("name-attr", interfaces.XPath(fmt.Sprintf("//input[%s] | //textarea[%s]", attrCI("name"), attrCI("name")))),
		scanFillStrategy(hintLower, value),
		firstEmptyInputStrategy(value),
	}
}

// scanFillStrategy enumerates visible inputs and fills the first whose
// placeholder or aria-label mentions the hint.
func scanFillStrategy(hintLower, value string) Strategy {
	return Strategy{
		Name: "scan-visible",
		Act: func(ctx context.Context, w interfaces.WidgetContext) error {
			inputs, err := w.VisibleInputs(ctx)
			if err != nil {
				return err
			}
			for _, in := range inputs {
				if in.Disabled {
					continue
				}
				if strings.Contains(strings.ToLower(in.Placeholder), hintLower) ||
					strings.Contains(strings.ToLower(in.AriaLabel), hintLower) {
					return w.FillInputAt(ctx, in.Index, value)
				}
			}
			return fmt.Errorf("no visible input mentions %q", hintLower)
		},
	}
}

// firstEmptyInputStrategy is the positional last resort: when the widget
// shows a single anonymous prompt field, fill the first empty visible input.
func firstEmptyInputStrategy(value string) Strategy {
	return Strategy{
		Name: "first-empty",
		Act: func(ctx context.Context, w interfaces.WidgetContext) error {
			inputs, err := w.VisibleInputs(ctx)
			if err != nil {
				return err
			}
			for _, in := range inputs {
				if in.Disabled || in.Value != "" {
					continue
				}
				if in.Type == "file" || in.Type == "hidden" || in.Type == "checkbox" || in.Type == "radio" {
					continue
				}
				return w.FillInputAt(ctx, in.Index, value)
			}
			return fmt.Errorf("no empty visible input")
		},
	}
}

// SubmitStrategies presses Enter in the field that was just filled, then
// falls back to clicking a send/submit control.
func SubmitStrategies() []Strategy {
	return []Strategy{
		{
			Name: "enter-key",
			Act: func(ctx context.Context, w interfaces.WidgetContext) error {
				return w.Press(ctx, interfaces.CSS("input:focus, textarea:focus"), "Enter")
			},
		},
		clickStrategy("send-button", interfaces.CSS(`button[type="submit"], button[aria-label*="send" i], [class*="send"]`)),
		clickStrategy("submit-text", interfaces.XPath(fmt.Sprintf("//button[%s or %s]", containsTextCI("send"), containsTextCI("submit")))),
	}
}
