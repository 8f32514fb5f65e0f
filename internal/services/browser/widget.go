package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/reclaim/internal/interfaces"
)

// widget drives elements inside either the top document (frameIndex -1) or
// a same-origin iframe, entirely through evaluated page script. CDP node
// queries only see the main frame, so frame-scoped work goes through JS.
type widget struct {
	sess       *Session
	frameIndex int
}

// jsEnv builds the prelude that binds __doc to the widget's document and
// __find to the selector engine shared by every operation.
func (w *widget) jsEnv() string {
	return fmt.Sprintf(`
	var __doc = (function() {
		var idx = %d;
		if (idx >= 0) {
			var f = document.querySelectorAll("iframe")[idx];
			if (f && f.contentDocument) return f.contentDocument;
		}
		return document;
	})();
	var __visible = function(el) {
		if (!el || !el.getClientRects) return false;
		return el.getClientRects().length > 0;
	};
	var __find = function(by, expr) {
		var out = [];
		if (by === "xpath") {
			var it = __doc.evaluate(expr, __doc, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
			for (var i = 0; i < it.snapshotLength; i++) out.push(it.snapshotItem(i));
		} else {
			var list = __doc.querySelectorAll(expr);
			for (var j = 0; j < list.length; j++) out.push(list[j]);
		}
		return out;
	};
	var __first = function(by, expr) {
		var els = __find(by, expr);
		for (var i = 0; i < els.length; i++) {
			if (__visible(els[i])) return els[i];
		}
		return null;
	};
	var __setValue = function(el, value) {
		var proto = el.tagName === "TEXTAREA" ? window.HTMLTextAreaElement.prototype : window.HTMLInputElement.prototype;
		var desc = Object.getOwnPropertyDescriptor(proto, "value");
		if (desc && desc.set) { desc.set.call(el, value); } else { el.value = value; }
		el.dispatchEvent(new Event("input", {bubbles: true}));
		el.dispatchEvent(new Event("change", {bubbles: true}));
	};
	var __inputs = function() {
		var out = [];
		var list = __doc.querySelectorAll("input, textarea");
		for (var i = 0; i < list.length; i++) {
			if (__visible(list[i])) out.push(list[i]);
		}
		return out;
	};`, w.frameIndex)
}

// eval runs a script body in the widget environment, decoding the result
func (w *widget) eval(ctx context.Context, body string, res interface{}) error {
	js := fmt.Sprintf("(function() {%s\n%s})()", w.jsEnv(), body)
	return w.sess.run(ctx, chromedp.Evaluate(js, res))
}

func jsStr(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func selectorArgs(sel interfaces.Selector) string {
	return fmt.Sprintf("%s, %s", jsStr(string(sel.By)), jsStr(sel.Expr))
}

func (w *widget) Count(ctx context.Context, sel interfaces.Selector) (int, error) {
	var n int
	err := w.eval(ctx, fmt.Sprintf("return __find(%s).length;", selectorArgs(sel)), &n)
	return n, err
}

func (w *widget) Click(ctx context.Context, sel interfaces.Selector) error {
	var ok bool
	body := fmt.Sprintf(`
		var el = __first(%s);
		if (!el) return false;
		el.scrollIntoView({block: "center"});
		el.click();
		return true;`, selectorArgs(sel))
	if err := w.eval(ctx, body, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no visible element for %s %q", sel.By, sel.Expr)
	}
	return nil
}

func (w *widget) Fill(ctx context.Context, sel interfaces.Selector, value string) error {
	var ok bool
	body := fmt.Sprintf(`
		var el = __first(%s);
		if (!el) return false;
		el.focus();
		__setValue(el, %s);
		return true;`, selectorArgs(sel), jsStr(value))
	if err := w.eval(ctx, body, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no visible field for %s %q", sel.By, sel.Expr)
	}
	return nil
}

// Press focuses the matched element via script and delivers the key through
// CDP input, which routes to the focused element regardless of frame.
func (w *widget) Press(ctx context.Context, sel interfaces.Selector, key string) error {
	var ok bool
	body := fmt.Sprintf(`
		var el = __first(%s);
		if (!el) return false;
		el.focus();
		return true;`, selectorArgs(sel))
	if err := w.eval(ctx, body, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no visible element for %s %q", sel.By, sel.Expr)
	}
	seq := key
	if key == "Enter" {
		seq = "\r"
	}
	return w.sess.run(ctx, chromedp.KeyEvent(seq))
}

func (w *widget) VisibleInputs(ctx context.Context) ([]interfaces.InputInfo, error) {
	var infos []interfaces.InputInfo
	body := `
		var out = [];
		var list = __inputs();
		for (var i = 0; i < list.length; i++) {
			var el = list[i];
			out.push({
				index: i,
				tag: el.tagName.toLowerCase(),
				type: (el.getAttribute("type") || "").toLowerCase(),
				placeholder: el.getAttribute("placeholder") || "",
				aria_label: el.getAttribute("aria-label") || "",
				value: el.value || "",
				disabled: el.disabled === true
			});
		}
		return out;`
	if err := w.eval(ctx, body, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

func (w *widget) FillInputAt(ctx context.Context, index int, value string) error {
	var ok bool
	body := fmt.Sprintf(`
		var list = __inputs();
		if (%d >= list.length) return false;
		var el = list[%d];
		el.focus();
		__setValue(el, %s);
		return true;`, index, index, jsStr(value))
	if err := w.eval(ctx, body, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no visible input at index %d", index)
	}
	return nil
}

func (w *widget) SelectByText(ctx context.Context, sel interfaces.Selector, contains string) error {
	var ok bool
	body := fmt.Sprintf(`
		var el = __first(%s);
		if (!el || el.tagName !== "SELECT" || el.disabled) return false;
		var needle = %s;
		for (var i = 0; i < el.options.length; i++) {
			var opt = el.options[i];
			if ((opt.text || "").indexOf(needle) >= 0 || (opt.value || "").indexOf(needle) >= 0) {
				el.selectedIndex = i;
				el.dispatchEvent(new Event("change", {bubbles: true}));
				return true;
			}
		}
		return false;`, selectorArgs(sel), jsStr(contains))
	if err := w.eval(ctx, body, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no select option containing %q", contains)
	}
	return nil
}

// Upload relies on CDP's file-input support, which only resolves nodes in
// the main frame. Widget builds that keep the input in the top document are
// covered; a frame-isolated input surfaces as a normal step failure.
func (w *widget) Upload(ctx context.Context, sel interfaces.Selector, paths []string) error {
	if sel.By != interfaces.SelectorCSS {
		return fmt.Errorf("upload requires a css selector")
	}
	return w.sess.run(ctx, chromedp.SetUploadFiles(sel.Expr, paths, chromedp.ByQuery))
}

func (w *widget) Text(ctx context.Context, sel interfaces.Selector) (string, error) {
	var text string
	body := fmt.Sprintf(`
		var els = __find(%s);
		if (els.length === 0) return "";
		return els[0].textContent || "";`, selectorArgs(sel))
	if err := w.eval(ctx, body, &text); err != nil {
		return "", err
	}
	return text, nil
}

func (w *widget) HTML(ctx context.Context, sel interfaces.Selector) (string, error) {
	var html string
	body := fmt.Sprintf(`
		var els = __find(%s);
		if (els.length === 0) return "";
		return els[0].outerHTML || "";`, selectorArgs(sel))
	if err := w.eval(ctx, body, &html); err != nil {
		return "", err
	}
	if html == "" {
		return "", fmt.Errorf("no element for %s %q", sel.By, sel.Expr)
	}
	return html, nil
}
