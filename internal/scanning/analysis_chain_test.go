package scanning

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("AnalysisChain", func() {
	var (
		now     time.Time
		openai  *fakeAnalysisProvider
		gemini  *fakeAnalysisProvider
		final   AnalysisProvider
		chain   *AnalysisChain
		text    string
		draft   *ExpenseDraft
		state   ChainState
		err     error
		goodLLM func(source Source) *ExpenseDraft
	)

	BeforeEach(func() {
		now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		text = SmokeTestReceipt
		final = nil
		goodLLM = func(source Source) *ExpenseDraft {
			return &ExpenseDraft{
				Merchant: "7-Eleven",
				Date:     time.Date(2024, 5, 30, 9, 15, 0, 0, time.UTC),
				Total:    decimal.NewFromInt(40),
				Items: []LineItem{
					{Name: "น้ำดื่ม", Price: decimal.NewFromInt(15), Quantity: 1, Category: "beverage"},
					{Name: "ขนม", Price: decimal.NewFromInt(25), Quantity: 1, Category: "food"},
				},
				Confidence: 0.9,
				Source:     source,
			}
		}
		openai = &fakeAnalysisProvider{source: SourceOpenAI, draft: goodLLM(SourceOpenAI)}
		gemini = &fakeAnalysisProvider{source: SourceGemini, draft: goodLLM(SourceGemini)}
	})

	JustBeforeEach(func() {
		chain = NewAnalysisChain([]AnalysisProvider{openai, gemini}, final,
			WithClock(fixedClock(now)), WithTimeout(50*time.Millisecond))
		draft, state, err = chain.AnalyzeWithState(context.Background(), text)
	})

	When("the first provider returns a valid draft", func() {
		It("should return it", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(Equal(StateValidated))
			Expect(draft.Source).To(Equal(SourceOpenAI))
			Expect(gemini.calls.Load()).To(BeZero())
		})

		It("should truncate the date to the calendar day", func() {
			Expect(draft.Date).To(Equal(time.Date(2024, 5, 30, 0, 0, 0, 0, time.UTC)))
		})

		It("should return a copy", func() {
			draft.Items[0].Name = "changed"
			Expect(openai.draft.Items[0].Name).To(Equal("น้ำดื่ม"))
		})
	})

	When("the first provider fails", func() {
		BeforeEach(func() {
			openai.err = errors.New("rate limited")
		})

		It("should use the next provider", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(draft.Source).To(Equal(SourceGemini))
		})
	})

	When("the first provider returns an invalid draft", func() {
		BeforeEach(func() {
			openai.draft.Merchant = ""
		})

		It("should use the next provider", func() {
			Expect(draft.Source).To(Equal(SourceGemini))
		})
	})

	When("a provider panics", func() {
		BeforeEach(func() {
			openai.panics = true
		})

		It("should use the next provider", func() {
			Expect(draft.Source).To(Equal(SourceGemini))
		})
	})

	When("a provider ignores its deadline", func() {
		BeforeEach(func() {
			openai.delay = 500 * time.Millisecond
		})

		It("should abandon it and use the next provider", func() {
			Expect(draft.Source).To(Equal(SourceGemini))
		})
	})

	When("the external providers all fail", func() {
		BeforeEach(func() {
			openai.err = errors.New("down")
			gemini.err = errors.New("down")
		})

		It("should fall back to the rule-based extractor", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(Equal(StateValidated))
			Expect(draft.Source).To(Equal(SourceRuleBased))
			Expect(draft.Merchant).To(Equal("ร้าน 7-Eleven"))
			Expect(draft.Total.Equal(decimal.NewFromInt(40))).To(BeTrue())
			Expect(draft.ISODate()).To(Equal("2024-06-01"))
		})
	})

	When("the accepted draft has a total mismatch", func() {
		BeforeEach(func() {
			openai.draft.Total = decimal.NewFromInt(400)
		})

		It("should attach the warning", func() {
			Expect(draft.Source).To(Equal(SourceOpenAI))
			Expect(draft.Warnings).To(ConsistOf(WarningTotalMismatch))
		})
	})

	When("the text is too short", func() {
		BeforeEach(func() {
			text = "  รวม 40  "
		})

		It("should fail without calling any provider", func() {
			Expect(err).To(MatchError(ErrInsufficientInput))
			Expect(draft).To(BeNil())
			Expect(state).To(Equal(StateNotAttempted))
			Expect(openai.calls.Load()).To(BeZero())
			Expect(gemini.calls.Load()).To(BeZero())
		})
	})

	When("the text is garbage", func() {
		BeforeEach(func() {
			text = "@@@@ #### !!!! ????"
			openai.err = errors.New("down")
			gemini.err = errors.New("down")
		})

		It("should still return a valid draft", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(draft.Source).To(Equal(SourceRuleBased))
			Expect(draft.Merchant).To(Equal(UnspecifiedMerchant))
			Expect(Validate(draft).Accepted).To(BeTrue())
		})

		It("should keep an empty item list", func() {
			Expect(draft.Items).NotTo(BeNil())
			Expect(draft.Items).To(BeEmpty())
		})
	})

	When("every method fails", func() {
		BeforeEach(func() {
			openai.err = errors.New("down")
			gemini.err = errors.New("down")
			final = &fakeAnalysisProvider{source: SourceRuleBased, draft: &ExpenseDraft{}}
		})

		It("should return the terminal draft", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(Equal(StateExhaustedFallback))
			Expect(draft.Source).To(Equal(SourceFallback))
			Expect(draft.Confidence).To(Equal(FallbackConfidence))
			Expect(draft.Error).To(Equal(FallbackError))
			Expect(draft.Merchant).To(Equal(UnspecifiedMerchant))
			Expect(draft.Total.IsZero()).To(BeTrue())
			Expect(draft.ISODate()).To(Equal("2024-06-01"))
			Expect(draft.Items).To(HaveLen(1))
			Expect(draft.Items[0].Name).To(Equal(PlaceholderItemName))
			Expect(draft.Items[0].Quantity).To(Equal(1))
			Expect(draft.Items[0].Category).To(Equal(CategoryOther))
		})

		It("should return a valid draft", func() {
			Expect(Validate(draft).Accepted).To(BeTrue())
		})
	})

	Describe("Providers", func() {
		It("should list the rule-based extractor last", func() {
			providers := chain.Providers()
			Expect(providers).To(HaveLen(3))
			Expect(providers[2].Source()).To(Equal(SourceRuleBased))
		})
	})

	Describe("Check", func() {
		It("should report every provider", func() {
			gemini.err = errors.New("unauthorized")
			statuses := chain.Check(context.Background(), SmokeTestReceipt)
			Expect(statuses).To(HaveLen(3))
			Expect(statuses[0].OK).To(BeTrue())
			Expect(statuses[1].OK).To(BeFalse())
			Expect(statuses[2].OK).To(BeTrue())
			Expect(statuses[2].Detail).To(Equal("ร้าน 7-Eleven"))
		})
	})
})
