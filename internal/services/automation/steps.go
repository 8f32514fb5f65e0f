package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/reclaim/internal/interfaces"
	"github.com/ternarybob/reclaim/internal/models"
)

// ReasonVariants maps each canonical refund reason to the UI label variants
// observed in the widget, tried in order. The canonical form is always
// attempted first.
var ReasonVariants = map[models.RefundReason][]string{
	models.ReasonIllOrSurgery: {"ILL OR HAVING SURGERY", "Ill or having surgery", "ILL"},
	models.ReasonPregnant:     {"PREGNANT", "Pregnant"},
	models.ReasonCourtSummons: {"COURT SUMMONS OR SERVICE AT POLLING STATION", "Court summons or service at polling station", "COURT SUMMONS", "Court summons"},
	models.ReasonDeath:        {"SOMEONE'S DEATH", "Someone's death", "Someone's Death"},
}

// cookieDismissSelectors cover the consent banners seen on the refund page.
// Dismissal is best-effort: none matching is not a failure.
var cookieDismissSelectors = []interfaces.Selector{
	interfaces.CSS("#onetrust-accept-btn-handler"),
	interfaces.XPath("//button[" + containsTextCI("accept") + "]"),
	interfaces.XPath("//button[" + containsTextCI("aceptar") + "]"),
	interfaces.CSS(`button[id*="cookie"]`),
	interfaces.XPath("//button[" + containsTextCI("i agree") + "]"),
	interfaces.XPath("//button[" + containsTextCI("ok") + "]"),
}

// widgetMarkers are the selectors whose presence means the conversational
// widget has rendered on the page.
var widgetMarkers = []interfaces.Selector{
	interfaces.CSS("iframe[src*='chat']"),
	interfaces.CSS("iframe[src*='bot']"),
	interfaces.CSS("[class*='chat']"),
	interfaces.CSS("[class*='webchat']"),
	interfaces.CSS("[id*='webchat']"),
	interfaces.CSS("[data-testid*='chat']"),
}

// Plan builds the fixed ordered step sequence for one claim. Attempt counts
// reflect how flaky each interaction is in practice: reason and document
// prompts arrive on the widget's own schedule and get the most tries.
func Plan() []Step {
	return []Step{
		{Name: models.StepLaunchSession, Attempts: 2, Run: stepLaunchSession},
		{Name: models.StepNavigate, Attempts: 2, Run: stepNavigate},
		{Name: models.StepAwaitWidget, Attempts: 1, Run: stepAwaitWidget},
		{Name: models.StepSelectCodeEmail, Attempts: 2, Run: stepSelectCodeEmail},
		{Name: models.StepFillBooking, Attempts: 2, Run: stepFillBooking},
		{Name: models.StepSelectReason, Attempts: 3, Run: stepSelectReason},
		{Name: models.StepConfirmDocuments, Attempts: 3, Run: stepConfirmDocuments},
		{Name: models.StepFillName, Attempts: 2, Run: stepFillName},
		{Name: models.StepContactEmail, Attempts: 2, Run: stepContactEmail},
		{Name: models.StepFillPhone, Attempts: 2, Run: stepFillPhone},
		{Name: models.StepSubmitComment, Attempts: 2, Run: stepSubmitComment},
		{Name: models.StepUploadDocuments, Attempts: 2, Run: stepUploadDocuments},
		{Name: models.StepExtractReference, Attempts: 2, Run: stepExtractReference},
		{Name: models.StepDeclineAnother, Attempts: 1, Run: stepDeclineAnother},
	}
}

func stepLaunchSession(ctx context.Context, rt *Runtime) error {
	return rt.Session.Start(ctx)
}

func stepNavigate(ctx context.Context, rt *Runtime) error {
	if err := rt.Session.Navigate(ctx, rt.cfg.TargetURL); err != nil {
		return err
	}
	rt.Pace(ctx)
	dismissCookieBanner(ctx, rt)
	rt.CaptureEvidence(ctx, "page_loaded")
	return nil
}

// dismissCookieBanner clears a consent banner when one is showing. First
// match wins, none matching is fine.
func dismissCookieBanner(ctx context.Context, rt *Runtime) {
	page := rt.Session.Page()
	for _, sel := range cookieDismissSelectors {
		if err := page.Click(ctx, sel); err == nil {
			rt.log.Debug().Str("job_id", rt.JobID).Msg("Cookie banner dismissed")
			rt.Pace(ctx)
			break
		}
	}
}

func stepAwaitWidget(ctx context.Context, rt *Runtime) error {
	page := rt.Session.Page()
	deadline := time.Now().Add(rt.cfg.StepTimeoutDuration() / 2)
	found := false
	for time.Now().Before(deadline) && !found {
		for _, sel := range widgetMarkers {
			n, err := page.Count(ctx, sel)
			if err == nil && n > 0 {
				found = true
				break
			}
		}
		if !found && !sleep(ctx, rt.cfg.PollIntervalDuration()) {
			return ctx.Err()
		}
	}

	if !found {
		// The widget sometimes renders without any recognizable marker;
		// give it a grace period and let the next step decide.
		rt.log.Warn().Str("job_id", rt.JobID).Msg("No widget marker matched, continuing after grace period")
		sleep(ctx, 5*time.Second)
	}

	rt.CaptureEvidence(ctx, "widget_loaded")
	return nil
}

func stepSelectCodeEmail(ctx context.Context, rt *Runtime) error {
	rt.Pace(ctx)
	baseline := rt.Baseline(ctx)

	var lastErr error
	for _, label := range []string{"CODE AND EMAIL", "Code and email", "code"} {
		if err := rt.Resolve(ctx, "select code-and-email", ClickTextStrategies(label)); err != nil {
			lastErr = err
			continue
		}
		rt.CaptureEvidence(ctx, "code_email_selected")
		rt.AwaitResponse(ctx, baseline, rt.cfg.StepTimeoutDuration())
		rt.Pace(ctx)
		return nil
	}
	return fmt.Errorf("identification option not offered: %w", lastErr)
}

func stepFillBooking(ctx context.Context, rt *Runtime) error {
	rt.Pace(ctx)

	if err := rt.Resolve(ctx, "fill booking code", FillStrategies("code", rt.Claim.BookingCode)); err != nil {
		if err2 := rt.Resolve(ctx, "fill booking code", FillStrategies("booking", rt.Claim.BookingCode)); err2 != nil {
			if err3 := fillInputAt(ctx, rt, 0, rt.Claim.BookingCode); err3 != nil {
				return fmt.Errorf("booking code field: %w", err)
			}
		}
	}
	rt.Pace(ctx)

	if err := rt.Resolve(ctx, "fill booking email", FillStrategies("email", rt.Claim.BookingEmail)); err != nil {
		if err2 := fillInputAt(ctx, rt, 1, rt.Claim.BookingEmail); err2 != nil {
			return fmt.Errorf("booking email field: %w", err)
		}
	}

	rt.CaptureEvidence(ctx, "booking_filled")
	rt.Pace(ctx)

	baseline := rt.Baseline(ctx)
	clickFirst(ctx, rt, "send booking", []string{"SEND", "Send", "Enviar"})

	rt.CaptureEvidence(ctx, "send_clicked")
	rt.AwaitResponse(ctx, baseline, rt.cfg.StepTimeoutDuration())
	rt.Pace(ctx)
	rt.CaptureEvidence(ctx, "verification_response")
	return nil
}

func stepSelectReason(ctx context.Context, rt *Runtime) error {
	rt.Pace(ctx)
	rt.AwaitResponse(ctx, 0, rt.cfg.SettleWindowDuration()*2)

	variants := append([]string{string(rt.Claim.Reason)}, ReasonVariants[rt.Claim.Reason]...)
	seen := map[string]bool{}

	var lastErr error
	for _, label := range variants {
		if seen[label] {
			continue
		}
		seen[label] = true

		baseline := rt.Baseline(ctx)
		if err := rt.Resolve(ctx, "select reason", ClickTextStrategies(label)); err != nil {
			lastErr = err
			continue
		}
		rt.CaptureEvidence(ctx, "reason_selected")
		rt.AwaitResponse(ctx, baseline, rt.cfg.StepTimeoutDuration())
		rt.Pace(ctx)
		return nil
	}
	return fmt.Errorf("reason %q not offered: %w", rt.Claim.Reason, lastErr)
}

func stepConfirmDocuments(ctx context.Context, rt *Runtime) error {
	rt.Pace(ctx)
	baseline := rt.Baseline(ctx)

	if err := rt.Resolve(ctx, "confirm documents ready", ClickTextStrategies("YES")); err != nil {
		return fmt.Errorf("documents-ready prompt: %w", err)
	}
	rt.CaptureEvidence(ctx, "documents_confirmed")
	rt.AwaitResponse(ctx, baseline, rt.cfg.StepTimeoutDuration())
	rt.Pace(ctx)
	return nil
}

func stepFillName(ctx context.Context, rt *Runtime) error {
	rt.Pace(ctx)
	rt.AwaitResponse(ctx, 0, rt.cfg.SettleWindowDuration()*2)

	if err := rt.Resolve(ctx, "fill first name", FillStrategies("first name", rt.Claim.FirstName)); err != nil {
		if err2 := rt.Resolve(ctx, "fill first name", FillStrategies("first", rt.Claim.FirstName)); err2 != nil {
			if err3 := fillInputAt(ctx, rt, 0, rt.Claim.FirstName); err3 != nil {
				return fmt.Errorf("first name field: %w", err)
			}
		}
	}
	rt.Pace(ctx)

	if err := rt.Resolve(ctx, "fill surname", FillStrategies("surname", rt.Claim.Surname)); err != nil {
		if err2 := fillInputAt(ctx, rt, 1, rt.Claim.Surname); err2 != nil {
			return fmt.Errorf("surname field: %w", err)
		}
	}

	rt.CaptureEvidence(ctx, "name_filled")
	rt.Pace(ctx)

	baseline := rt.Baseline(ctx)
	clickFirst(ctx, rt, "send name", []string{"SEND", "Send"})
	rt.AwaitResponse(ctx, baseline, rt.cfg.StepTimeoutDuration())
	rt.Pace(ctx)
	rt.CaptureEvidence(ctx, "name_sent")
	return nil
}

func stepContactEmail(ctx context.Context, rt *Runtime) error {
	rt.Pace(ctx)
	baseline := rt.Baseline(ctx)

	if err := typeInChat(ctx, rt, rt.Claim.ContactEmail); err != nil {
		return fmt.Errorf("contact email: %w", err)
	}
	rt.CaptureEvidence(ctx, "contact_email_sent")
	rt.AwaitResponse(ctx, baseline, rt.cfg.StepTimeoutDuration())
	rt.Pace(ctx)
	return nil
}

func stepFillPhone(ctx context.Context, rt *Runtime) error {
	rt.Pace(ctx)
	rt.AwaitResponse(ctx, 0, rt.cfg.SettleWindowDuration()*2)
	rt.CaptureEvidence(ctx, "phone_step_ready")

	prefix := strings.TrimPrefix(rt.Claim.PhoneCountry, "+")
	selectPhonePrefix(ctx, rt, prefix)

	rt.Pace(ctx)
	rt.CaptureEvidence(ctx, "prefix_selected")

	if err := fillPhoneNumber(ctx, rt, rt.Claim.PhoneNumber); err != nil {
		return err
	}
	rt.CaptureEvidence(ctx, "phone_filled")
	rt.Pace(ctx)

	baseline := rt.Baseline(ctx)
	clickFirst(ctx, rt, "send phone", []string{"SEND", "Send"})
	rt.AwaitResponse(ctx, baseline, rt.cfg.StepTimeoutDuration())
	rt.Pace(ctx)
	rt.CaptureEvidence(ctx, "phone_sent")
	return nil
}

func stepSubmitComment(ctx context.Context, rt *Runtime) error {
	rt.Pace(ctx)

	if rt.Claim.Comment != "" {
		w, err := rt.Widget(ctx)
		if err == nil {
			if err := w.Fill(ctx, interfaces.CSS("textarea"), rt.Claim.Comment); err != nil {
				rt.log.Debug().Str("job_id", rt.JobID).Msg("No comment textarea found, submitting without comment")
			}
		}
	}

	rt.CaptureEvidence(ctx, "comment_filled")
	rt.Pace(ctx)

	baseline := rt.Baseline(ctx)
	clickFirst(ctx, rt, "submit query", []string{"SUBMIT QUERY", "Submit query", "SUBMIT", "Submit"})

	rt.AwaitResponse(ctx, baseline, rt.cfg.StepTimeoutDuration())
	rt.Pace(ctx)
	rt.CaptureEvidence(ctx, "comment_submitted")
	return nil
}

func stepUploadDocuments(ctx context.Context, rt *Runtime) error {
	rt.Pace(ctx)

	if len(rt.Documents) == 0 {
		rt.log.Info().Str("job_id", rt.JobID).Msg("No documents to upload")
		rt.CaptureEvidence(ctx, "no_documents")
		return nil
	}

	w, err := rt.Widget(ctx)
	if err != nil {
		return err
	}

	// Some widget builds only attach the file input after the select button
	// is clicked; the click failing is fine when the input already exists.
	clickFirst(ctx, rt, "open file chooser", []string{"Select them", "Select", "Browse", "Upload", "Attach"})

	if err := w.Upload(ctx, interfaces.CSS(`input[type="file"]`), rt.Documents); err != nil {
		return fmt.Errorf("file upload: %w", err)
	}
	rt.log.Info().Str("job_id", rt.JobID).Int("files", len(rt.Documents)).Msg("Documents uploaded")

	rt.Pace(ctx)
	rt.CaptureEvidence(ctx, "documents_uploaded")

	baseline := rt.Baseline(ctx)
	clickFirst(ctx, rt, "confirm upload", []string{"Yes, continue", "YES, CONTINUE", "Yes", "Continue"})
	rt.AwaitResponse(ctx, baseline, rt.cfg.StepTimeoutDuration())
	rt.Pace(ctx)
	return nil
}

func stepExtractReference(ctx context.Context, rt *Runtime) error {
	rt.Pace(ctx)
	rt.AwaitResponse(ctx, 0, rt.cfg.SettleWindowDuration()*2)

	w, err := rt.Widget(ctx)
	if err != nil {
		return err
	}

	html, err := w.HTML(ctx, interfaces.CSS("body"))
	if err != nil {
		text, terr := w.Text(ctx, interfaces.CSS("body"))
		if terr != nil {
			return fmt.Errorf("read confirmation: %w", err)
		}
		html = "<body>" + text + "</body>"
	}

	text, err := ConversationText(html)
	if err != nil {
		return fmt.Errorf("parse confirmation: %w", err)
	}

	if num, ok := ExtractCaseNumber(text); ok {
		rt.Acc.CaseNumber = num
		rt.log.Info().Str("job_id", rt.JobID).Str("case_number", num).Msg("Case number extracted")
	} else {
		rt.log.Warn().Str("job_id", rt.JobID).Msg("No case number found in confirmation")
	}

	rt.CaptureEvidence(ctx, "confirmation")
	return nil
}

func stepDeclineAnother(ctx context.Context, rt *Runtime) error {
	rt.Pace(ctx)

	if err := rt.Resolve(ctx, "decline another refund", ClickTextStrategies("NO")); err != nil {
		// Session already complete if the prompt never appeared.
		rt.log.Debug().Str("job_id", rt.JobID).Msg("No another-refund prompt found, finishing")
		rt.CaptureEvidence(ctx, "final_state")
		return nil
	}
	rt.CaptureEvidence(ctx, "declined_another")
	rt.Pace(ctx)
	return nil
}

// clickFirst tries a list of labels and reports whether any click landed
func clickFirst(ctx context.Context, rt *Runtime, action string, labels []string) bool {
	for _, label := range labels {
		if err := rt.Resolve(ctx, action, ClickTextStrategies(label)); err == nil {
			return true
		}
	}
	rt.log.Debug().Str("job_id", rt.JobID).Str("action", action).Msg("No matching control found")
	return false
}

// fillInputAt is the positional fallback: fill the visible input at index
func fillInputAt(ctx context.Context, rt *Runtime, index int, value string) error {
	w, err := rt.Widget(ctx)
	if err != nil {
		return err
	}
	inputs, err := w.VisibleInputs(ctx)
	if err != nil {
		return err
	}
	if index >= len(inputs) {
		return fmt.Errorf("no visible input at position %d", index)
	}
	return w.FillInputAt(ctx, inputs[index].Index, value)
}

// typeInChat fills the free-text chat prompt and submits it with Enter,
// preferring the reply/write placeholder and falling back to the last
// visible input.
func typeInChat(ctx context.Context, rt *Runtime, message string) error {
	w, err := rt.Widget(ctx)
	if err != nil {
		return err
	}

	chatInput := interfaces.CSS(`input[placeholder*="reply" i], input[placeholder*="write" i], textarea[placeholder*="reply" i], textarea[placeholder*="write" i]`)
	if err := w.Fill(ctx, chatInput, message); err != nil {
		inputs, err := w.VisibleInputs(ctx)
		if err != nil {
			return err
		}
		if len(inputs) == 0 {
			return errors.New("no chat input available")
		}
		last := inputs[len(inputs)-1]
		if err := w.FillInputAt(ctx, last.Index, message); err != nil {
			return err
		}
	}
	rt.Pace(ctx)
	return rt.Resolve(ctx, "submit chat input", SubmitStrategies())
}

// selectPhonePrefix picks the country prefix via the widget's custom
// dropdown, then a native select, and finally gives up and keeps the
// widget's default. A missing prefix never fails the phone step.
func selectPhonePrefix(ctx context.Context, rt *Runtime, prefix string) {
	w, err := rt.Widget(ctx)
	if err != nil {
		return
	}

	triggers := []interfaces.Selector{
		interfaces.XPath("//*[" + containsTextCI("choose a prefix") + "]"),
		interfaces.CSS(`[class*="prefix"]`),
		interfaces.CSS(`[class*="country"]`),
		interfaces.CSS(`[class*="dropdown"]`),
	}
	optionTexts := []string{"(+" + prefix + ")", "+" + prefix}

	for _, trigger := range triggers {
		if err := w.Click(ctx, trigger); err != nil {
			continue
		}
		rt.Pace(ctx)
		rt.CaptureEvidence(ctx, "prefix_dropdown_opened")

		for _, opt := range optionTexts {
			optionSel := interfaces.XPath(fmt.Sprintf(
				"//*[contains(@class, 'option') or contains(@role, 'option') or self::li][contains(normalize-space(.), %s)]",
				xpathLiteral(opt)))
			if err := w.Click(ctx, optionSel); err == nil {
				rt.log.Debug().Str("job_id", rt.JobID).Str("prefix", prefix).Msg("Country prefix selected")
				return
			}
		}
	}

	if err := w.SelectByText(ctx, interfaces.CSS("select"), "+"+prefix); err == nil {
		rt.log.Debug().Str("job_id", rt.JobID).Str("prefix", prefix).Msg("Country prefix selected via native select")
		return
	}

	rt.log.Warn().Str("job_id", rt.JobID).Str("prefix", prefix).Msg("Could not select country prefix, keeping widget default")
}

// fillPhoneNumber fills the phone field by placeholder or type, falling back
// to the first empty text-like input that is not the prefix control.
func fillPhoneNumber(ctx context.Context, rt *Runtime, number string) error {
	w, err := rt.Widget(ctx)
	if err != nil {
		return err
	}

	selectors := []interfaces.Selector{
		interfaces.CSS(`input[placeholder*="phone" i]`),
		interfaces.CSS(`input[placeholder*="mobile" i]`),
		interfaces.CSS(`input[type="tel"]:not([disabled])`),
		interfaces.CSS(`input[type="number"]:not([disabled])`),
	}
	for _, sel := range selectors {
		if err := w.Fill(ctx, sel, number); err == nil {
			return nil
		}
	}

	inputs, err := w.VisibleInputs(ctx)
	if err != nil {
		return err
	}
	for _, in := range inputs {
		if in.Disabled || in.Value != "" {
			continue
		}
		switch in.Type {
		case "", "text", "tel", "number":
		default:
			continue
		}
		if strings.Contains(strings.ToLower(in.Placeholder), "prefix") {
			continue
		}
		return w.FillInputAt(ctx, in.Index, number)
	}
	return errors.New("no phone number input found")
}
