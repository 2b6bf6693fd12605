package session

import "errors"

var (
	// ErrNoQuestions means the exam has no questions; the caller redirects
	// to the entry flow instead of rendering an empty exam.
	ErrNoQuestions = errors.New("session: exam has no questions")

	// ErrNoSelection is the user-visible validation failure for submitting
	// without picking an option. No state changes and nothing is sent.
	ErrNoSelection = errors.New("session: no option selected")

	// ErrUnknownOption means the selected text is not one of the current
	// question's options.
	ErrUnknownOption = errors.New("session: selected option not on current question")

	// ErrSubmitInFlight means a submission is already running; the second
	// call is ignored to prevent a double-advance race.
	ErrSubmitInFlight = errors.New("session: submission already in flight")

	// ErrNotActive means the session is not in the active state, so no
	// question is being presented.
	ErrNotActive = errors.New("session: not accepting answers in current state")
)
