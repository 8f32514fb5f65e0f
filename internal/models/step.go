package models

// Step names for the refund claim plan. The plan is a fixed ordered sequence;
// ordering lives in the automation package, these constants are shared with
// the progress notifier's phase mapping.
const (
	StepLaunchSession    = "launch_session"
	StepNavigate         = "navigate"
	StepAwaitWidget      = "await_widget"
	StepSelectCodeEmail  = "select_code_email"
	StepFillBooking      = "fill_booking"
	StepSelectReason     = "select_reason"
	StepConfirmDocuments = "confirm_documents"
	StepFillName         = "fill_name"
	StepContactEmail     = "contact_email"
	StepFillPhone        = "fill_phone"
	StepSubmitComment    = "submit_comment"
	StepUploadDocuments  = "upload_documents"
	StepExtractReference = "extract_reference"
	StepDeclineAnother   = "decline_another"
)

// Step names for the booking verification plan. Verification shares the
// session launch step with the claim plan.
const (
	StepOpenBookingPage   = "open_booking_page"
	StepFillCredentials   = "fill_credentials"
	StepRetrieveBooking   = "retrieve_booking"
	StepReadBookingResult = "read_booking_result"
)
