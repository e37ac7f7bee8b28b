package scanning

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("RuleBasedExtractor", func() {
	var (
		extractor *RuleBasedExtractor
		today     time.Time
		text      string
		draft     *ExpenseDraft
	)

	BeforeEach(func() {
		today = time.Date(2024, 6, 1, 18, 45, 0, 0, time.UTC)
		extractor = NewRuleBasedExtractor(nil, fixedClock(today))
	})

	JustBeforeEach(func() {
		draft = extractor.Extract(text)
	})

	When("reading a Thai convenience store receipt", func() {
		BeforeEach(func() {
			text = "ร้าน 7-Eleven\nน้ำดื่ม 15 บาท\nขนม 25 บาท\nรวม 40 บาท"
		})

		It("should take the first line as merchant", func() {
			Expect(draft.Merchant).To(Equal("ร้าน 7-Eleven"))
		})

		It("should read the total", func() {
			Expect(draft.Total.Equal(decimal.NewFromInt(40))).To(BeTrue())
		})

		It("should read the items with categories", func() {
			Expect(draft.Items).To(HaveLen(2))
			Expect(draft.Items[0].Name).To(Equal("น้ำดื่ม"))
			Expect(draft.Items[0].Price.Equal(decimal.NewFromInt(15))).To(BeTrue())
			Expect(draft.Items[0].Quantity).To(Equal(1))
			Expect(draft.Items[0].Category).To(Equal("beverage"))
			Expect(draft.Items[1].Name).To(Equal("ขนม"))
			Expect(draft.Items[1].Category).To(Equal("food"))
		})

		It("should default the date to today", func() {
			Expect(draft.ISODate()).To(Equal("2024-06-01"))
		})

		It("should report rule-based confidence", func() {
			Expect(draft.Source).To(Equal(SourceRuleBased))
			Expect(draft.Confidence).To(Equal(RuleBasedConfidence))
		})

		It("should produce a valid draft", func() {
			Expect(Validate(draft).Accepted).To(BeTrue())
		})

		It("should be deterministic", func() {
			again := extractor.Extract(text)
			first, err := json.Marshal(draft)
			Expect(err).NotTo(HaveOccurred())
			second, err := json.Marshal(again)
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(MatchJSON(first))
		})
	})

	When("the receipt has a date", func() {
		BeforeEach(func() {
			text = "Big C Supercenter\n15/03/2024 10:22\nmilk 45.50\nTOTAL 45.50"
		})

		It("should parse it day first", func() {
			Expect(draft.ISODate()).To(Equal("2024-03-15"))
		})

		It("should parse the decimal total", func() {
			Expect(draft.Total.String()).To(Equal("45.5"))
		})
	})

	DescribeTable("date formats",
		func(input string, expected string) {
			Expect(extractDate(input, calendarDate(today)).Format(dateLayout)).To(Equal(expected))
		},
		Entry("two digit year", "วันที่ 05-02-24", "2024-02-05"),
		Entry("dotted", "1.12.2023", "2023-12-01"),
		Entry("Buddhist Era year", "15/01/2567", "2024-01-15"),
		Entry("invalid calendar date", "31/02/2024", "2024-06-01"),
		Entry("three digit year", "01/01/202", "2024-06-01"),
		Entry("no date", "nothing here", "2024-06-01"),
	)

	DescribeTable("amounts",
		func(token string, expected string) {
			amount, err := parseAmount(token)
			Expect(err).NotTo(HaveOccurred())
			Expect(amount.Equal(decimal.RequireFromString(expected))).To(BeTrue())
		},
		Entry("thousands separator", "1,234.50", "1234.50"),
		Entry("decimal point", "12.50", "12.50"),
		Entry("decimal comma", "12,50", "12.50"),
		Entry("integer", "40", "40"),
	)

	When("there is no merchant line", func() {
		BeforeEach(func() {
			text = "123456\n12 34\n99"
		})

		It("should use the unspecified merchant", func() {
			Expect(draft.Merchant).To(Equal(UnspecifiedMerchant))
		})
	})

	When("no item lines match", func() {
		BeforeEach(func() {
			text = "Receipt\n40+15+25\nsum 40"
		})

		It("should number every other amount as an item", func() {
			Expect(draft.Items).To(HaveLen(2))
			Expect(draft.Items[0].Name).To(Equal("item 2"))
			Expect(draft.Items[0].Price.Equal(decimal.NewFromInt(15))).To(BeTrue())
			Expect(draft.Items[1].Name).To(Equal("item 3"))
			Expect(draft.Items[1].Category).To(Equal(CategoryOther))
		})
	})

	When("there is no total line", func() {
		BeforeEach(func() {
			text = "Corner Shop\nbread 30\ncoffee 55"
		})

		It("should sum the items", func() {
			Expect(draft.Total.Equal(decimal.NewFromInt(85))).To(BeTrue())
		})
	})

	When("the text is garbage", func() {
		BeforeEach(func() {
			text = "@@@ ### !!! ???"
		})

		It("should still produce a valid draft", func() {
			Expect(draft.Items).NotTo(BeNil())
			Expect(draft.Total.IsZero()).To(BeTrue())
			Expect(Validate(draft).Accepted).To(BeTrue())
		})
	})
})
