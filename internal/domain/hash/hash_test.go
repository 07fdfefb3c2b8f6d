package hash_test

import (
	"testing"

	"github.com/erichter2018/rvutrack/internal/domain/hash"
	. "github.com/smartystreets/goconvey/convey"
)

func TestHasher(t *testing.T) {
	Convey("Given a hasher with a fixed salt", t, func() {
		h := hash.New("salt-1")

		Convey("When hashing the same accession twice", func() {
			a := h.Hash("ACC1234")
			b := h.Hash("ACC1234")

			Convey("Then the outputs are identical", func() {
				So(a, ShouldEqual, b)
			})

			Convey("And the output is hex-encoded SHA-256", func() {
				So(a, ShouldHaveLength, 64)
			})
		})

		Convey("When hashing different accessions", func() {
			a := h.Hash("ACC1234")
			b := h.Hash("ACC1235")

			Convey("Then the outputs differ", func() {
				So(a, ShouldNotEqual, b)
			})
		})

		Convey("When hashing the same accession with a different salt", func() {
			other := hash.New("salt-2")

			Convey("Then the outputs differ", func() {
				So(h.Hash("ACC1234"), ShouldNotEqual, other.Hash("ACC1234"))
			})
		})

		Convey("When the output is inspected", func() {
			Convey("Then the raw accession does not appear in it", func() {
				So(h.Hash("ACC1234"), ShouldNotContainSubstring, "ACC1234")
			})
		})
	})
}
