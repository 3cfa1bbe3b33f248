package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/smartpantry/paragon/internal/models"
	"github.com/smartpantry/paragon/internal/parser"
)

// Structurer turns raw OCR text into a structured receipt when the
// deterministic parser cannot. Implementations perform I/O.
type Structurer interface {
	Structure(ctx context.Context, rawText string) (*models.ParsedReceipt, error)
}

// StructurerConfig holds the model backend settings.
type StructurerConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// OpenAIStructurer asks a chat model for the structured receipt as JSON.
type OpenAIStructurer struct {
	client  *openai.Client
	model   string
	temp    float32
	timeout time.Duration
	gate    *SlotGate
	logger  *zap.Logger
}

func NewOpenAIStructurer(cfg StructurerConfig, gate *SlotGate, logger *zap.Logger) *OpenAIStructurer {
	return &OpenAIStructurer{
		client:  openai.NewClient(cfg.APIKey),
		model:   cfg.Model,
		temp:    cfg.Temperature,
		timeout: cfg.Timeout,
		gate:    gate,
		logger:  logger,
	}
}

// flexAmount tolerates model output that renders numbers as strings.
type flexAmount float64

func (a *flexAmount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*a = 0
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", s, err)
	}
	*a = flexAmount(v)
	return nil
}

// structuredReceipt is the JSON contract with the structuring model.
type structuredReceipt struct {
	Store    string              `json:"store"`
	Date     string              `json:"date"`
	Total    *flexAmount         `json:"total"`
	Products []structuredProduct `json:"products"`
}

type structuredProduct struct {
	Name     string     `json:"name"`
	Price    flexAmount `json:"price"`
	Discount flexAmount `json:"discount"`
}

// Structure acquires a model slot, asks the backend for structured
// receipt JSON and converts the answer into a ParsedReceipt. A slot
// timeout surfaces as the retryable ErrSlotTimeout.
func (s *OpenAIStructurer) Structure(ctx context.Context, rawText string) (*models.ParsedReceipt, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.gate.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.gate.Release()

	s.logger.Info("structuring receipt text with model",
		zap.String("model", s.model),
		zap.Int("text_length", len(rawText)))

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: s.temp,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an expert at reading Polish retail receipts. Extract structured data from noisy OCR text. Always respond with valid JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: s.buildPrompt(rawText),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		s.logger.Error("structuring call failed", zap.Error(err))
		return nil, fmt.Errorf("structuring call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from structuring model")
	}

	content := resp.Choices[0].Message.Content

	var structured structuredReceipt
	if err := json.Unmarshal([]byte(content), &structured); err != nil {
		s.logger.Error("failed to parse structuring response",
			zap.Error(err),
			zap.String("content", content))
		return nil, fmt.Errorf("failed to parse structuring response: %w", err)
	}

	receipt := s.convert(&structured, rawText)
	if len(receipt.Products) == 0 {
		return receipt, parser.ErrNoProductsFound
	}

	s.logger.Info("receipt structured by model",
		zap.String("store", receipt.Store),
		zap.Int("products", len(receipt.Products)))
	return receipt, nil
}

// convert maps the model's answer onto the same ParsedReceipt shape the
// deterministic parser produces, reconstructing pre-discount prices.
func (s *OpenAIStructurer) convert(in *structuredReceipt, rawText string) *models.ParsedReceipt {
	out := &models.ParsedReceipt{
		Store:   strings.TrimSpace(in.Store),
		Date:    strings.TrimSpace(in.Date),
		RawText: rawText,
	}
	if in.Total != nil && *in.Total > 0 {
		t := float64(*in.Total)
		out.Total = &t
	}

	for _, sp := range in.Products {
		name := strings.TrimSpace(sp.Name)
		price := float64(sp.Price)
		if name == "" || price <= 0 {
			continue
		}
		p := models.ParsedProduct{Name: name, Price: models.Round2(price)}
		if d := float64(sp.Discount); d > 0 {
			before := models.Round2(price + d)
			amount := models.Round2(d)
			p.PriceBeforeDiscount = &before
			p.DiscountAmount = &amount
			p.DiscountBreakdown = []models.DiscountInfo{
				{Kind: models.DiscountAmount, Value: amount, Label: parser.DefaultDiscountLabel},
			}
		}
		out.Products = append(out.Products, p)
	}
	return out
}

func (s *OpenAIStructurer) buildPrompt(rawText string) string {
	return fmt.Sprintf(`Extract the purchased items from this OCR text of a Polish retail receipt:

%s

Return JSON with this exact structure:
{
  "store": "store name or empty string",
  "date": "YYYY-MM-DD or empty string",
  "total": number or null,
  "products": [{"name": "string", "price": number, "discount": number}]
}

Rules:
- "price" is the final price actually charged for the item, after discount.
- "discount" is the discount amount applied, 0 if none.
- Skip tax summaries, payment lines, change, barcodes and store boilerplate.
- Extract exactly what is printed. Do not invent items.`, rawText)
}
