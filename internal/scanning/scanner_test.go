package scanning

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("ExpenseDraft", func() {
	Describe("clone", func() {
		It("should keep empty slices non-nil", func() {
			d := ExpenseDraft{Items: []LineItem{}, Warnings: []string{}}
			out := d.clone()
			Expect(out.Items).NotTo(BeNil())
			Expect(out.Warnings).NotTo(BeNil())
		})

		It("should keep nil slices nil", func() {
			out := ExpenseDraft{}.clone()
			Expect(out.Items).To(BeNil())
			Expect(out.Warnings).To(BeNil())
		})

		It("should not share items with the original", func() {
			d := ExpenseDraft{Items: []LineItem{{Name: "water", Price: decimal.NewFromInt(15), Quantity: 1}}}
			out := d.clone()
			out.Items[0].Name = "changed"
			Expect(d.Items[0].Name).To(Equal("water"))
		})
	})
})

var _ = Describe("calendarDate", func() {
	It("should use the calendar day of the clock's location", func() {
		bangkok, err := time.LoadLocation("Asia/Bangkok")
		Expect(err).NotTo(HaveOccurred())
		// 02:00 on June 1st in Bangkok is still May 31st in UTC
		now := time.Date(2024, 5, 31, 19, 0, 0, 0, time.UTC)

		Expect(calendarDate(now).Format(dateLayout)).To(Equal("2024-05-31"))
		Expect(calendarDate(now.In(bangkok)).Format(dateLayout)).To(Equal("2024-06-01"))
	})

	It("should date undated receipts by the extractor's clock", func() {
		bangkok, err := time.LoadLocation("Asia/Bangkok")
		Expect(err).NotTo(HaveOccurred())
		clock := func() time.Time { return time.Date(2024, 5, 31, 19, 0, 0, 0, time.UTC).In(bangkok) }

		draft := NewRuleBasedExtractor(nil, clock).Extract("Corner shop\nwater 15\ntotal 15")
		Expect(draft.ISODate()).To(Equal("2024-06-01"))
		Expect(draft.Date.Location()).To(Equal(time.UTC))
	})
})
