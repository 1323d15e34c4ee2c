package auth

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-keeper/internal/models"
)

var _ = Describe("Sessions", func() {
	var (
		sessions *Sessions
		now      time.Time
		user     *models.User
	)

	BeforeEach(func() {
		now = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
		sessions = NewSessions([]byte("test-secret"), time.Hour, 10*time.Minute)
		sessions.now = func() time.Time { return now }
		user = &models.User{Email: "a@x.com", Name: "Ann"}
	})

	It("validates a token it issued", func() {
		token, err := sessions.Issue(user)
		Expect(err).NotTo(HaveOccurred())

		claims, err := sessions.Validate(token)
		Expect(err).NotTo(HaveOccurred())
		Expect(claims.Email).To(Equal("a@x.com"))
		Expect(claims.Name).To(Equal("Ann"))
	})

	It("rejects an expired token", func() {
		token, _ := sessions.Issue(user)
		now = now.Add(2 * time.Hour)

		_, err := sessions.Validate(token)
		Expect(err).To(MatchError(ErrInvalidToken))
	})

	It("rejects a token signed with another secret", func() {
		other := NewSessions([]byte("other-secret"), time.Hour, time.Minute)
		other.now = sessions.now
		token, _ := other.Issue(user)

		_, err := sessions.Validate(token)
		Expect(err).To(MatchError(ErrInvalidToken))
	})

	It("rejects garbage", func() {
		_, err := sessions.Validate("not.a.token")
		Expect(err).To(MatchError(ErrInvalidToken))
	})

	Describe("Logout", func() {
		It("revokes the token", func() {
			token, _ := sessions.Issue(user)
			Expect(sessions.Logout(token)).To(Succeed())

			_, err := sessions.Validate(token)
			Expect(err).To(MatchError(ErrInvalidToken))
		})

		It("leaves other tokens valid", func() {
			first, _ := sessions.Issue(user)
			second, _ := sessions.Issue(user)
			Expect(sessions.Logout(first)).To(Succeed())

			_, err := sessions.Validate(second)
			Expect(err).NotTo(HaveOccurred())
		})

		It("forgets revocations after expiry", func() {
			token, _ := sessions.Issue(user)
			Expect(sessions.Logout(token)).To(Succeed())

			now = now.Add(2 * time.Hour)
			fresh, _ := sessions.Issue(user)
			Expect(sessions.Logout(fresh)).To(Succeed())
			Expect(sessions.revoked).To(HaveLen(1))
		})
	})

	Describe("recovery tickets", func() {
		It("round-trips the recovery state", func() {
			state := RecoveryState{Step: StepQuestion, Email: "a@x.com", Question: "pet"}
			ticket, err := sessions.IssueRecoveryTicket(state)
			Expect(err).NotTo(HaveOccurred())

			parsed, err := sessions.ParseRecoveryTicket(ticket)
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed).To(Equal(state))
		})

		It("cannot be used as a session", func() {
			ticket, _ := sessions.IssueRecoveryTicket(RecoveryState{Step: StepNewPassword, Email: "a@x.com"})
			_, err := sessions.Validate(ticket)
			Expect(err).To(MatchError(ErrInvalidToken))
		})

		It("is not accepted from a session token", func() {
			token, _ := sessions.Issue(user)
			_, err := sessions.ParseRecoveryTicket(token)
			Expect(err).To(MatchError(ErrInvalidToken))
		})

		It("expires quickly", func() {
			ticket, _ := sessions.IssueRecoveryTicket(RecoveryState{Step: StepQuestion, Email: "a@x.com"})
			now = now.Add(11 * time.Minute)
			_, err := sessions.ParseRecoveryTicket(ticket)
			Expect(err).To(MatchError(ErrInvalidToken))
		})
	})
})
