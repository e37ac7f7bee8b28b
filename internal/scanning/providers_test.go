package scanning

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"github.com/shopspring/decimal"
	"google.golang.org/genproto/googleapis/rpc/status"
)

const llmReceiptJSON = `{"merchant": "7-Eleven", "date": "2024-05-30", "total": 40,
  "items": [{"name": "น้ำดื่ม", "price": 15, "quantity": 1, "category": "beverage"},
            {"name": "ขนม", "price": 25, "quantity": 1, "category": "snacks"}]}`

var testNow = fixedClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))

var _ = Describe("OCRSpace", func() {
	var (
		server   *ghttp.Server
		provider *OCRSpace
		result   *OCRResult
		err      error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		provider, err = NewOCRSpace("test-key", server.URL()+"/parse/image")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		result, err = provider.ExtractText(context.Background(), Image{Data: []byte("png-bytes"), ContentType: "image/png"})
	})

	When("the API reads the receipt", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/parse/image"),
				func(w http.ResponseWriter, r *http.Request) {
					defer GinkgoRecover()
					Expect(r.ParseMultipartForm(1 << 20)).To(Succeed())
					Expect(r.FormValue("apikey")).To(Equal("test-key"))
					Expect(r.FormValue("language")).To(Equal("tha"))
					Expect(r.FormValue("OCREngine")).To(Equal("2"))
					Expect(r.FormValue("isTable")).To(Equal("true"))
					file, header, err := r.FormFile("file")
					Expect(err).NotTo(HaveOccurred())
					defer file.Close()
					Expect(header.Filename).To(Equal("receipt.png"))
					data, _ := io.ReadAll(file)
					Expect(string(data)).To(Equal("png-bytes"))
				},
				ghttp.RespondWith(http.StatusOK, `{
					"ParsedResults": [{"ParsedText": "ร้าน 7-Eleven\r\nรวม 40 บาท", "TextOverlay": {"HasOverlay": true}}],
					"IsErroredOnProcessing": false
				}`),
			))
		})

		It("should return the parsed text", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Text).To(Equal("ร้าน 7-Eleven\r\nรวม 40 บาท"))
			Expect(result.Source).To(Equal(SourceOCRSpace))
		})

		It("should use the overlay confidence", func() {
			Expect(result.Confidence).To(Equal(0.8))
		})
	})

	When("there is no overlay", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusOK,
				`{"ParsedResults": [{"ParsedText": "text"}], "IsErroredOnProcessing": false}`))
		})

		It("should use the plain confidence", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Confidence).To(Equal(0.6))
		})
	})

	When("processing failed", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusOK,
				`{"IsErroredOnProcessing": true, "ErrorMessage": ["File failed validation", "Bad image"]}`))
		})

		It("should return the API error", func() {
			Expect(err).To(MatchError(ContainSubstring("File failed validation; Bad image")))
		})
	})

	When("the API returns a server error", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "boom"))
		})

		It("should return an error", func() {
			Expect(err).To(MatchError(ContainSubstring("status 500")))
		})
	})
})

var _ = Describe("NewOCRSpace", func() {
	It("requires an API key", func() {
		_, err := NewOCRSpace("", "")
		Expect(err).To(MatchError(ErrNotConfigured))
	})
})

type fakeAnnotator struct {
	req    *visionpb.BatchAnnotateImagesRequest
	resp   *visionpb.BatchAnnotateImagesResponse
	err    error
	closed bool
}

func (f *fakeAnnotator) BatchAnnotateImages(_ context.Context, req *visionpb.BatchAnnotateImagesRequest, _ ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error) {
	f.req = req
	return f.resp, f.err
}

func (f *fakeAnnotator) Close() error {
	f.closed = true
	return nil
}

var _ = Describe("GoogleVision", func() {
	var (
		annotator *fakeAnnotator
		provider  *GoogleVision
		result    *OCRResult
		err       error
	)

	BeforeEach(func() {
		annotator = &fakeAnnotator{}
		provider = newGoogleVisionWithClient(annotator)
	})

	JustBeforeEach(func() {
		result, err = provider.ExtractText(context.Background(), Image{Data: []byte("png"), ContentType: "image/png"})
	})

	When("text is detected", func() {
		BeforeEach(func() {
			annotator.resp = &visionpb.BatchAnnotateImagesResponse{
				Responses: []*visionpb.AnnotateImageResponse{{
					TextAnnotations: []*visionpb.EntityAnnotation{
						{Description: "Big C\nรวม 100 บาท"},
						{Description: "Big"},
					},
				}},
			}
		})

		It("should return the full text annotation", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Text).To(Equal("Big C\nรวม 100 บาท"))
			Expect(result.Confidence).To(Equal(GoogleVisionConfidence))
			Expect(result.Source).To(Equal(SourceGoogleVision))
		})

		It("should request text detection with Thai and English hints", func() {
			req := annotator.req.GetRequests()[0]
			Expect(req.GetFeatures()[0].GetType()).To(Equal(visionpb.Feature_TEXT_DETECTION))
			Expect(req.GetFeatures()[0].GetMaxResults()).To(Equal(int32(1)))
			Expect(req.GetImageContext().GetLanguageHints()).To(Equal([]string{"th", "en"}))
			Expect(req.GetImage().GetContent()).To(Equal([]byte("png")))
		})
	})

	When("no text is detected", func() {
		BeforeEach(func() {
			annotator.resp = &visionpb.BatchAnnotateImagesResponse{
				Responses: []*visionpb.AnnotateImageResponse{{}},
			}
		})

		It("should return ErrNoText", func() {
			Expect(err).To(MatchError(ErrNoText))
		})
	})

	When("the image fails", func() {
		BeforeEach(func() {
			annotator.resp = &visionpb.BatchAnnotateImagesResponse{
				Responses: []*visionpb.AnnotateImageResponse{{
					Error: &status.Status{Code: 3, Message: "Bad image data."},
				}},
			}
		})

		It("should return the error", func() {
			Expect(err).To(MatchError(ContainSubstring("Bad image data.")))
		})
	})

	It("should close the client", func() {
		Expect(provider.Close()).To(Succeed())
		Expect(annotator.closed).To(BeTrue())
	})
})

var _ = Describe("OpenAI", func() {
	var (
		server   *ghttp.Server
		provider *OpenAI
		draft    *ExpenseDraft
		err      error
		content  string
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		provider, err = NewOpenAI("sk-test", "", server.URL()+"/v1", testNow)
		Expect(err).NotTo(HaveOccurred())
		content = llmReceiptJSON
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		server.AppendHandlers(ghttp.CombineHandlers(
			ghttp.VerifyRequest(http.MethodPost, "/v1/chat/completions"),
			ghttp.VerifyHeaderKV("Authorization", "Bearer sk-test"),
			func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				var body map[string]any
				Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
				Expect(body["model"]).To(Equal("gpt-4o-mini"))
				Expect(body["temperature"]).To(BeNumerically("~", 0.1))
				Expect(body["response_format"]).To(HaveKeyWithValue("type", "json_object"))
			},
			ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"id":     "chatcmpl-1",
				"object": "chat.completion",
				"choices": []map[string]any{{
					"index":         0,
					"message":       map[string]any{"role": "assistant", "content": content},
					"finish_reason": "stop",
				}},
			}),
		))
		draft, err = provider.Analyze(context.Background(), SmokeTestReceipt)
	})

	It("should parse the draft", func() {
		Expect(err).NotTo(HaveOccurred())
		Expect(draft.Merchant).To(Equal("7-Eleven"))
		Expect(draft.Total.Equal(decimal.NewFromInt(40))).To(BeTrue())
		Expect(draft.Confidence).To(Equal(OpenAIConfidence))
		Expect(draft.Source).To(Equal(SourceOpenAI))
	})

	It("should reclassify unknown categories", func() {
		Expect(draft.Items[1].Category).To(Equal("food"))
	})

	When("the model answers with prose", func() {
		BeforeEach(func() {
			content = "Sorry, I cannot read this receipt."
		})

		It("should return a malformed response error", func() {
			Expect(err).To(MatchError(ErrMalformedResponse))
		})
	})

	It("requires an API key", func() {
		_, err := NewOpenAI("", "", "", nil)
		Expect(err).To(MatchError(ErrNotConfigured))
	})
})

var _ = Describe("Ollama", func() {
	var (
		server   *ghttp.Server
		provider *Ollama
		draft    *ExpenseDraft
		err      error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		provider, err = NewOllama(server.URL()+"/", "llama3.1", testNow)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		draft, err = provider.Analyze(context.Background(), SmokeTestReceipt)
	})

	When("the model answers", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyJSONRepresenting(map[string]any{
					"model":  "llama3.1",
					"stream": false,
					"format": "json",
					"messages": []map[string]string{
						{"role": "system", "content": receiptSystemPrompt},
						{"role": "user", "content": buildAnalysisPrompt(SmokeTestReceipt, DefaultCategories)},
					},
					"options": map[string]any{"temperature": 0.1},
				}),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"message": map[string]string{"role": "assistant", "content": llmReceiptJSON},
					"done":    true,
				}),
			))
		})

		It("should parse the draft", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(draft.Source).To(Equal(SourceOllama))
			Expect(draft.Confidence).To(Equal(OllamaConfidence))
			Expect(draft.ISODate()).To(Equal("2024-05-30"))
			Expect(draft.Items).To(HaveLen(2))
		})
	})

	When("the server fails", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusNotFound, `{"error":"model not found"}`))
		})

		It("should return an error", func() {
			Expect(err).To(MatchError(ContainSubstring("model not found")))
		})
	})
})

var _ = Describe("Gemini", func() {
	It("requires an API key", func() {
		_, err := NewGemini(context.Background(), "", "", nil)
		Expect(err).To(MatchError(ErrNotConfigured))
	})
})
