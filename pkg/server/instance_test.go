package server_test

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mvn-raffle/photoproxy/pkg/server"
)

var _ = Describe("GetOrCreateInstanceID", func() {
	It("should create and then reuse the stored ID", func() {
		path := filepath.Join(GinkgoT().TempDir(), "data", "instance-id")

		first, err := server.GetOrCreateInstanceID(path)
		Expect(err).ToNot(HaveOccurred())
		_, err = uuid.Parse(first)
		Expect(err).ToNot(HaveOccurred())

		second, err := server.GetOrCreateInstanceID(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(second).To(Equal(first))
	})

	It("should replace a malformed file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "instance-id")
		Expect(os.WriteFile(path, []byte("garbage"), 0o644)).To(Succeed())

		id, err := server.GetOrCreateInstanceID(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(id).ToNot(Equal("garbage"))

		data, err := os.ReadFile(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(data)).To(Equal(id + "\n"))
	})

	It("should generate a fresh ID without a path", func() {
		a, err := server.GetOrCreateInstanceID("")
		Expect(err).ToNot(HaveOccurred())
		b, _ := server.GetOrCreateInstanceID("")
		Expect(a).ToNot(Equal(b))
	})
})
