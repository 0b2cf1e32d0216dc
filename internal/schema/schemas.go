package schema

import "github.com/architeacher/svc-commerce-saga/internal/domain"

// canonicalSchemas maps event types to the JSON schema of their data
// payload. Payloads are validated after envelope normalization, so each
// shape is declared exactly once.
var canonicalSchemas = map[string]string{
	string(domain.EventProductCreated): `{
		"type": "object",
		"required": ["productId", "name", "price"],
		"properties": {
			"productId": {"type": "string", "minLength": 1},
			"name":      {"type": "string", "minLength": 1},
			"price":     {"type": "number", "minimum": 0},
			"stock":     {"type": "integer", "minimum": 0}
		}
	}`,

	string(domain.EventProductDeleted): `{
		"type": "object",
		"required": ["productId"],
		"properties": {
			"productId": {"type": "string", "minLength": 1}
		}
	}`,

	string(domain.EventOrderCreated): `{
		"type": "object",
		"required": ["orderId", "userId", "productId", "quantity"],
		"properties": {
			"orderId":   {"type": "string", "minLength": 1},
			"userId":    {"type": "string", "minLength": 1},
			"productId": {"type": "string", "minLength": 1},
			"quantity":  {"type": "integer", "minimum": 1},
			"amount":    {"type": "number", "minimum": 0},
			"source":    {"type": "string", "enum": ["web", "seckill"]}
		}
	}`,

	string(domain.EventOrderConfirmed): `{
		"type": "object",
		"required": ["orderId"],
		"properties": {
			"orderId": {"type": "string", "minLength": 1}
		}
	}`,

	string(domain.EventOrderCancelled): `{
		"type": "object",
		"required": ["orderId"],
		"properties": {
			"orderId": {"type": "string", "minLength": 1},
			"reason":  {"type": "string"}
		}
	}`,

	string(domain.EventOrderTimeout): `{
		"type": "object",
		"required": ["orderId"],
		"properties": {
			"orderId": {"type": "string", "minLength": 1},
			"reason":  {"type": "string"}
		}
	}`,

	string(domain.EventReserve): `{
		"type": "object",
		"required": ["orderId", "productId", "quantity"],
		"properties": {
			"orderId":   {"type": "string", "minLength": 1},
			"productId": {"type": "string", "minLength": 1},
			"quantity":  {"type": "integer", "minimum": 1}
		}
	}`,

	string(domain.EventRelease): `{
		"type": "object",
		"required": ["orderId"],
		"properties": {
			"orderId": {"type": "string", "minLength": 1},
			"reason":  {"type": "string"}
		}
	}`,

	string(domain.EventRestock): `{
		"type": "object",
		"required": ["productId", "quantity"],
		"properties": {
			"productId": {"type": "string", "minLength": 1},
			"quantity":  {"type": "integer", "minimum": 1}
		}
	}`,

	string(domain.EventInventoryReserved): `{
		"type": "object",
		"required": ["orderId", "productId", "quantity"],
		"properties": {
			"orderId":   {"type": "string", "minLength": 1},
			"productId": {"type": "string", "minLength": 1},
			"quantity":  {"type": "integer", "minimum": 1}
		}
	}`,

	string(domain.EventInventoryReserveFailed): `{
		"type": "object",
		"required": ["orderId", "reason"],
		"properties": {
			"orderId": {"type": "string", "minLength": 1},
			"reason":  {"type": "string", "minLength": 1}
		}
	}`,

	string(domain.EventStockReserved): `{
		"type": "object",
		"required": ["orderId"],
		"properties": {
			"orderId":   {"type": "string", "minLength": 1},
			"productId": {"type": "string"}
		}
	}`,

	string(domain.EventPaymentInitiated): `{
		"type": "object",
		"required": ["orderId", "amount"],
		"properties": {
			"orderId": {"type": "string", "minLength": 1},
			"amount":  {"type": "number", "minimum": 0}
		}
	}`,

	string(domain.EventPaymentSucceeded): `{
		"type": "object",
		"required": ["orderId"],
		"properties": {
			"orderId":   {"type": "string", "minLength": 1},
			"paymentId": {"type": "string"},
			"amount":    {"type": "number", "minimum": 0}
		}
	}`,

	string(domain.EventPaymentFailed): `{
		"type": "object",
		"required": ["orderId", "reason"],
		"properties": {
			"orderId": {"type": "string", "minLength": 1},
			"reason":  {"type": "string", "minLength": 1}
		}
	}`,

	string(domain.EventPaymentCancel): `{
		"type": "object",
		"required": ["orderId"],
		"properties": {
			"orderId": {"type": "string", "minLength": 1},
			"reason":  {"type": "string"}
		}
	}`,

	string(domain.EventSeckillOrderWon): `{
		"type": "object",
		"required": ["userId", "productId", "timestamp"],
		"properties": {
			"userId":    {"type": "string", "minLength": 1},
			"productId": {"type": "string", "minLength": 1},
			"timestamp": {"type": ["string", "integer"]},
			"quantity":  {"type": "integer", "minimum": 1}
		}
	}`,
}
