package auth

import (
	"context"
	"fmt"
)

// Step is a position in the password recovery flow.
type Step string

const (
	StepEmail       Step = "email"
	StepQuestion    Step = "question"
	StepNewPassword Step = "new_password"
	StepDone        Step = "done"
)

// RecoveryState is a snapshot of a Recovery, small enough to carry in a
// signed ticket between requests.
type RecoveryState struct {
	Step     Step   `json:"step"`
	Email    string `json:"email,omitempty"`
	Question string `json:"question,omitempty"`
}

// Recovery walks EMAIL -> QUESTION -> NEW_PASSWORD -> DONE. Steps cannot be
// skipped; a failed submission leaves the flow where it was.
type Recovery struct {
	svc   *Service
	state RecoveryState
}

// BeginRecovery starts a flow at the email step.
func (s *Service) BeginRecovery() *Recovery {
	return &Recovery{svc: s, state: RecoveryState{Step: StepEmail}}
}

// ResumeRecovery rebuilds a flow from a snapshot taken with State. The
// snapshot must come from a trusted source, such as a verified ticket.
func (s *Service) ResumeRecovery(state RecoveryState) (*Recovery, error) {
	switch state.Step {
	case StepEmail:
		return s.BeginRecovery(), nil
	case StepQuestion, StepNewPassword, StepDone:
		if state.Email == "" {
			return nil, fmt.Errorf("%w: missing email", ErrRecoveryStep)
		}
		return &Recovery{svc: s, state: state}, nil
	default:
		return nil, fmt.Errorf("%w: unknown step %q", ErrRecoveryStep, state.Step)
	}
}

// State returns the current snapshot.
func (r *Recovery) State() RecoveryState {
	return r.state
}

// Step returns the step awaiting input.
func (r *Recovery) Step() Step {
	return r.state.Step
}

// Question returns the account's security question once the email step
// has passed.
func (r *Recovery) Question() string {
	return r.state.Question
}

// SubmitEmail finds the account and moves to the question step.
func (r *Recovery) SubmitEmail(ctx context.Context, email string) error {
	if err := r.expect(StepEmail); err != nil {
		return err
	}

	normalized := NormalizeEmail(email)
	question, err := r.svc.SecurityQuestion(ctx, normalized)
	if err != nil {
		return err
	}

	r.state = RecoveryState{Step: StepQuestion, Email: normalized, Question: question}
	return nil
}

// SubmitAnswer checks the security answer and moves to the new password
// step.
func (r *Recovery) SubmitAnswer(ctx context.Context, answer string) error {
	if err := r.expect(StepQuestion); err != nil {
		return err
	}
	if err := r.svc.VerifySecurityAnswer(ctx, r.state.Email, answer); err != nil {
		return err
	}

	r.state.Step = StepNewPassword
	return nil
}

// SubmitNewPassword stores the new password and finishes the flow.
func (r *Recovery) SubmitNewPassword(ctx context.Context, password string) error {
	if err := r.expect(StepNewPassword); err != nil {
		return err
	}
	if err := r.svc.ResetPassword(ctx, r.state.Email, password); err != nil {
		return err
	}

	r.state = RecoveryState{Step: StepDone, Email: r.state.Email}
	return nil
}

func (r *Recovery) expect(step Step) error {
	if r.state.Step != step {
		return fmt.Errorf("%w: at %s, got %s", ErrRecoveryStep, r.state.Step, step)
	}
	return nil
}
