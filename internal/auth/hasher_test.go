package auth

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

var _ = Describe("Hashers", func() {
	hashers := []struct {
		name   string
		hasher Hasher
	}{
		{"sha256", SHA256Hasher{}},
		{"bcrypt", BcryptHasher{Cost: bcrypt.MinCost}},
		{"argon2id", cheapArgon2()},
	}

	for _, tc := range hashers {
		hasher := tc.hasher
		Describe(tc.name, func() {
			var encoded string

			BeforeEach(func() {
				var err error
				encoded, err = hasher.Hash("Passw0rd!")
				Expect(err).NotTo(HaveOccurred())
			})

			It("never stores the secret itself", func() {
				Expect(encoded).NotTo(ContainSubstring("Passw0rd!"))
			})

			It("verifies the same secret", func() {
				ok, err := hasher.Verify("Passw0rd!", encoded)
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(BeTrue())
			})

			It("is case sensitive", func() {
				ok, err := hasher.Verify("passw0rd!", encoded)
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(BeFalse())
			})
		})
	}

	It("encodes sha256 as lowercase hex", func() {
		encoded, err := SHA256Hasher{}.Hash("abc")
		Expect(err).NotTo(HaveOccurred())
		Expect(encoded).To(Equal("ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"))
	})

	It("salts argon2id hashes", func() {
		h := cheapArgon2()
		first, _ := h.Hash("same")
		second, _ := h.Hash("same")
		Expect(first).NotTo(Equal(second))
		Expect(strings.HasPrefix(first, "$argon2id$v=19$")).To(BeTrue())
	})

	It("rejects a malformed argon2id hash", func() {
		_, err := cheapArgon2().Verify("x", "not-a-hash")
		Expect(err).To(HaveOccurred())
	})

	DescribeTable("refuses truncated argon2id hashes",
		func(truncate func(parts []string)) {
			encoded, err := cheapArgon2().Hash("Passw0rd!")
			Expect(err).NotTo(HaveOccurred())
			parts := strings.Split(encoded, "$")
			truncate(parts)

			ok, err := cheapArgon2().Verify("anything", strings.Join(parts, "$"))
			Expect(err).To(HaveOccurred())
			Expect(ok).To(BeFalse())
		},
		Entry("empty key", func(parts []string) { parts[5] = "" }),
		Entry("empty salt", func(parts []string) { parts[4] = "" }),
		Entry("zero iterations", func(parts []string) { parts[3] = "m=64,t=0,p=1" }),
		Entry("zero threads", func(parts []string) { parts[3] = "m=64,t=1,p=0" }),
	)

	Describe("NewHasher", func() {
		It("knows every supported name", func() {
			for _, name := range []string{"sha256", "bcrypt", "argon2id"} {
				_, err := NewHasher(name)
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("rejects unknown names", func() {
			_, err := NewHasher("md5")
			Expect(err).To(HaveOccurred())
		})
	})
})
