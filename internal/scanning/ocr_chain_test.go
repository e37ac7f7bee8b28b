package scanning

import (
	"context"
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ = Describe("OCRChain", func() {
	var (
		primary   *fakeOCRProvider
		secondary *fakeOCRProvider
		chain     *OCRChain
		metrics   *Metrics
		ctx       context.Context
		result    OCRResult
	)

	BeforeEach(func() {
		ctx = context.Background()
		metrics = NewMetrics(prometheus.NewRegistry())
		primary = &fakeOCRProvider{
			source: SourceOCRSpace,
			result: &OCRResult{Text: "ร้าน 7-Eleven\r\nน้ำดื่ม   15 บาท", Confidence: 0.8, Source: SourceOCRSpace},
		}
		secondary = &fakeOCRProvider{
			source: SourceGoogleVision,
			result: &OCRResult{Text: "Big C\nรวม 100 บาท", Confidence: 0.9, Source: SourceGoogleVision},
		}
	})

	JustBeforeEach(func() {
		chain = NewOCRChain([]OCRProvider{primary, secondary}, WithMetrics(metrics), WithTimeout(50*time.Millisecond))
		result = chain.Extract(ctx, Image{Data: []byte("png"), ContentType: "image/png"})
	})

	When("the first provider succeeds", func() {
		It("should return its cleaned text", func() {
			Expect(result.Source).To(Equal(SourceOCRSpace))
			Expect(result.Text).To(Equal("ร้าน 7-Eleven\nน้ำดื่ม 15 บาท"))
			Expect(result.Confidence).To(Equal(0.8))
		})

		It("should not call the second provider", func() {
			Expect(secondary.calls.Load()).To(BeZero())
		})

		It("should record the accepted attempt", func() {
			Expect(testutil.ToFloat64(metrics.attempts.WithLabelValues(chainOCR, string(SourceOCRSpace), outcomeAccepted))).To(Equal(1.0))
		})
	})

	When("a provider reports NaN confidence", func() {
		BeforeEach(func() {
			primary.result.Confidence = math.NaN()
		})

		It("should report zero confidence", func() {
			Expect(result.Source).To(Equal(SourceOCRSpace))
			Expect(result.Confidence).To(Equal(0.0))
		})
	})

	When("the first provider fails", func() {
		BeforeEach(func() {
			primary.err = errors.New("quota exceeded")
		})

		It("should fall back to the next provider", func() {
			Expect(result.Source).To(Equal(SourceGoogleVision))
			Expect(result.Text).To(Equal("Big C\nรวม 100 บาท"))
		})
	})

	When("the first provider returns too little text", func() {
		BeforeEach(func() {
			// exactly ten runes is not enough
			primary.result = &OCRResult{Text: "  0123456789  ", Confidence: 0.8}
		})

		It("should fall back to the next provider", func() {
			Expect(result.Source).To(Equal(SourceGoogleVision))
			Expect(primary.calls.Load()).To(Equal(int32(1)))
		})

		It("should record the rejection", func() {
			Expect(testutil.ToFloat64(metrics.attempts.WithLabelValues(chainOCR, string(SourceOCRSpace), outcomeRejected))).To(Equal(1.0))
		})
	})

	When("the first provider times out", func() {
		BeforeEach(func() {
			primary.delay = time.Second
		})

		It("should fall back to the next provider", func() {
			Expect(result.Source).To(Equal(SourceGoogleVision))
		})
	})

	When("every provider fails", func() {
		BeforeEach(func() {
			primary.err = errors.New("down")
			secondary.err = ErrNoText
		})

		It("should return the fallback result", func() {
			Expect(result).To(Equal(FallbackOCRResult()))
			Expect(result.Text).To(BeEmpty())
			Expect(result.Confidence).To(BeZero())
			Expect(result.Source).To(Equal(SourceFallback))
		})

		It("should count the exhausted chain", func() {
			Expect(testutil.ToFloat64(metrics.results.WithLabelValues(chainOCR, StateExhaustedFallback.String(), string(SourceFallback)))).To(Equal(1.0))
		})
	})

	When("a provider answers with nothing", func() {
		BeforeEach(func() {
			primary.result = nil
		})

		It("should treat it as a failure", func() {
			Expect(result.Source).To(Equal(SourceGoogleVision))
		})
	})

	When("the context is already cancelled", func() {
		BeforeEach(func() {
			cctx, cancel := context.WithCancel(context.Background())
			cancel()
			ctx = cctx
		})

		It("should skip every provider", func() {
			Expect(result.Source).To(Equal(SourceFallback))
			Expect(primary.calls.Load()).To(BeZero())
			Expect(secondary.calls.Load()).To(BeZero())
		})
	})

	Describe("Check", func() {
		It("should report each provider", func() {
			secondary.err = ErrNoText
			statuses := chain.Check(context.Background(), blankTestImage())
			Expect(statuses).To(HaveLen(2))
			Expect(statuses[0].OK).To(BeTrue())
			Expect(statuses[1].OK).To(BeTrue())
			Expect(statuses[1].Detail).To(ContainSubstring("no text"))
		})

		It("should report failures", func() {
			primary.err = errors.New("unauthorized")
			statuses := chain.Check(context.Background(), blankTestImage())
			Expect(statuses[0].OK).To(BeFalse())
			Expect(statuses[0].Detail).To(Equal("unauthorized"))
		})
	})
})
