package auth

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ValidatePassword", func() {
	DescribeTable("accepted passwords",
		func(password string) {
			Expect(ValidatePassword(password)).To(Succeed())
		},
		Entry("all four classes at minimum length", "Abcdef1!"),
		Entry("space as the symbol", "Abc def1"),
		Entry("long passphrase", "Correct-Horse-Battery-9"),
	)

	DescribeTable("rejected passwords",
		func(password, reason string) {
			err := ValidatePassword(password)
			Expect(err).To(MatchError(ErrPasswordPolicy))
			Expect(err.Error()).To(ContainSubstring(reason))
		},
		Entry("lowercase only", "abcdefgh", "an uppercase letter"),
		Entry("no lowercase or symbol", "ABCDEFG1", "a lowercase letter"),
		Entry("no symbol", "Abcdefg1", "a symbol"),
		Entry("too short", "Ab1!", "at least 8 characters"),
		Entry("empty", "", "a digit"),
	)
})

var _ = Describe("normalization", func() {
	It("lowercases and trims emails", func() {
		Expect(NormalizeEmail("  A@X.com ")).To(Equal("a@x.com"))
	})

	It("lowercases and trims answers", func() {
		Expect(NormalizeAnswer("Rex ")).To(Equal("rex"))
	})
})
