package automation

import (
	"strconv"

	"support-middleware/internal/envelope"
)

// OrderSummary is the deterministic view of an order built from the event
// payload alone. Enrichment from commerce APIs is deliberately offline here;
// the worker stays reproducible for a given envelope.
type OrderSummary struct {
	OrderID        string  `json:"order_id"`
	Status         string  `json:"status"`
	Carrier        string  `json:"carrier"`
	TrackingNumber string  `json:"tracking_number"`
	UpdatedAt      string  `json:"updated_at"`
	ItemsCount     int     `json:"items_count"`
	TotalPrice     float64 `json:"total_price"`
	CreatedAt      string  `json:"created_at,omitempty"`
	ShippingMethod string  `json:"shipping_method,omitempty"`
}

// SummarizeOrder builds an OrderSummary from the envelope payload. Missing
// fields fall back to stable defaults so downstream formatting never branches
// on absence.
func SummarizeOrder(env envelope.Envelope) OrderSummary {
	payload := env.Payload

	summary := OrderSummary{
		OrderID:   extractOrderID(payload, env.ConversationID),
		Status:    firstString(payload, "status", "fulfillment_status", "order_status"),
		Carrier:   firstString(payload, "carrier", "shipping_carrier"),
		UpdatedAt: firstString(payload, "updated_at", "fulfillment_updated_at"),
		TrackingNumber: firstString(payload,
			"tracking_number", "trackingNumber", "tracking"),
		ShippingMethod: firstString(payload,
			"shipping_method", "shipping_method_name", "shipping_service", "shipping_option"),
		CreatedAt: firstString(payload,
			"created_at", "order_created_at", "ordered_at", "order_date"),
	}
	if summary.Status == "" {
		summary.Status = "unknown"
	}
	if summary.UpdatedAt == "" {
		summary.UpdatedAt = env.ReceivedAt
	}
	summary.ItemsCount = extractItemsCount(payload)
	summary.TotalPrice = coerceFloat(firstValue(payload, "total_price", "amount", "price"))
	return summary
}

func extractOrderID(payload map[string]any, conversationID string) string {
	if id := firstString(payload, "order_id", "orderId", "order_number", "orderNumber", "id"); id != "" {
		return id
	}
	if conversationID != "" {
		return conversationID
	}
	return "unknown"
}

func extractItemsCount(payload map[string]any) int {
	if n := coerceInt(firstValue(payload, "items_count", "itemsCount")); n > 0 {
		return n
	}
	if items, ok := payload["items"].([]any); ok {
		return len(items)
	}
	return 0
}

func firstValue(payload map[string]any, keys ...string) any {
	if payload == nil {
		return nil
	}
	for _, key := range keys {
		if v, ok := payload[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := coerceString(firstValue(payload, key)); s != "" {
			return s
		}
	}
	return ""
}

func coerceString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return ""
}

func coerceInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

func coerceFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}
