// Package docs holds the OpenAPI description of the storefront API served by
// Swagger UI. It follows the annotations on the HTTP handlers.
package docs

import "github.com/swaggo/swag/v2"

const docTemplate = `{
	"schemes": {{ marshal .Schemes }},
	"swagger": "2.0",
	"info": {
		"description": "{{escape .Description}}",
		"title": "{{.Title}}",
		"contact": {},
		"version": "{{.Version}}"
	},
	"host": "{{.Host}}",
	"basePath": "{{.BasePath}}",
	"paths": {
		"/health": {
			"get": {
				"tags": [
					"system"
				],
				"summary": "Health check",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					}
				}
			}
		},
		"/session": {
			"get": {
				"tags": [
					"session"
				],
				"summary": "Current identity",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					}
				}
			},
			"delete": {
				"tags": [
					"session"
				],
				"summary": "Log out",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					}
				}
			}
		},
		"/session/sdk": {
			"post": {
				"tags": [
					"session"
				],
				"summary": "Log in with a LINE SDK access token",
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Access token",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.SDKLoginRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					}
				}
			}
		},
		"/session/popup/begin": {
			"post": {
				"tags": [
					"session"
				],
				"summary": "Start a popup login",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					}
				}
			}
		},
		"/session/popup/message": {
			"post": {
				"tags": [
					"session"
				],
				"summary": "Deliver the message posted by the login popup",
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Popup message",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/identity.PopupMessage"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					},
					"403": {
						"description": "Forbidden",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					}
				}
			}
		},
		"/session/popup/callback": {
			"get": {
				"tags": [
					"session"
				],
				"summary": "LINE login callback",
				"produces": [
					"text/html"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Login ticket",
						"name": "state",
						"in": "query",
						"required": true
					},
					{
						"type": "string",
						"description": "Authorization code",
						"name": "code",
						"in": "query"
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					}
				}
			}
		},
		"/catalog": {
			"get": {
				"tags": [
					"catalog"
				],
				"summary": "Catalog view",
				"description": "Initializes the order page on first use and returns the categories and the active category's items",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					},
					"502": {
						"description": "Bad Gateway",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					}
				}
			}
		},
		"/catalog/categories/{index}/select": {
			"post": {
				"tags": [
					"catalog"
				],
				"summary": "Select a category",
				"description": "Loads the category's items. A response overtaken by a later selection comes back with superseded set.",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Category index",
						"name": "index",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					},
					"502": {
						"description": "Bad Gateway",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					}
				}
			}
		},
		"/cart": {
			"get": {
				"tags": [
					"cart"
				],
				"summary": "Cart contents",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					}
				}
			}
		},
		"/cart/items/{item}": {
			"put": {
				"tags": [
					"cart"
				],
				"summary": "Set an item's quantity",
				"description": "Non-numeric input counts as 0, which removes the line",
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Item name",
						"name": "item",
						"in": "path",
						"required": true
					},
					{
						"description": "Quantity",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.SetQuantityRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					}
				}
			},
			"delete": {
				"tags": [
					"cart"
				],
				"summary": "Remove an item from the cart",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Item name",
						"name": "item",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					}
				}
			}
		},
		"/cart/items/{item}/adjust": {
			"post": {
				"tags": [
					"cart"
				],
				"summary": "Step an item's quantity up or down",
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Item name",
						"name": "item",
						"in": "path",
						"required": true
					},
					{
						"description": "Step",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.AdjustQuantityRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					}
				}
			}
		},
		"/order/form": {
			"get": {
				"tags": [
					"order"
				],
				"summary": "Current order form",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					}
				}
			}
		},
		"/order/review": {
			"post": {
				"tags": [
					"order"
				],
				"summary": "Review the order",
				"description": "Validates the form against the cart and returns the lines with their total",
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Order form",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/order.Form"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					}
				}
			}
		},
		"/order/review/lines/{item}": {
			"delete": {
				"tags": [
					"order"
				],
				"summary": "Remove a line from the review",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Item name",
						"name": "item",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					}
				}
			}
		},
		"/order/submit": {
			"post": {
				"tags": [
					"order"
				],
				"summary": "Submit the order",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Client supplied idempotency key",
						"name": "Idempotency-Key",
						"in": "header"
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					},
					"409": {
						"description": "Conflict",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					},
					"502": {
						"description": "Bad Gateway",
						"schema": {
							"$ref": "#/definitions/dto.Response"
						}
					}
				}
			}
		}
	},
	"definitions": {
		"dto.Response": {
			"type": "object",
			"properties": {
				"success": {
					"type": "boolean"
				},
				"data": {},
				"error": {
					"$ref": "#/definitions/dto.ErrorInfo"
				}
			}
		},
		"dto.ErrorInfo": {
			"type": "object",
			"properties": {
				"code": {
					"type": "string"
				},
				"message": {
					"type": "string"
				},
				"request_id": {
					"type": "string"
				},
				"details": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/dto.ValidationDetail"
					}
				}
			}
		},
		"dto.ValidationDetail": {
			"type": "object",
			"properties": {
				"field": {
					"type": "string"
				},
				"message": {
					"type": "string"
				}
			}
		},
		"handler.SDKLoginRequest": {
			"type": "object",
			"required": [
				"access_token"
			],
			"properties": {
				"access_token": {
					"type": "string"
				}
			}
		},
		"handler.SetQuantityRequest": {
			"type": "object",
			"required": [
				"qty"
			],
			"properties": {
				"qty": {
					"description": "Number or numeric string"
				}
			}
		},
		"handler.AdjustQuantityRequest": {
			"type": "object",
			"properties": {
				"delta": {
					"type": "integer",
					"example": 1
				}
			}
		},
		"identity.PopupMessage": {
			"type": "object",
			"properties": {
				"origin": {
					"type": "string"
				},
				"state": {
					"type": "string"
				},
				"data": {
					"$ref": "#/definitions/identity.PopupPayload"
				}
			}
		},
		"identity.PopupPayload": {
			"type": "object",
			"properties": {
				"success": {
					"type": "boolean"
				},
				"accessToken": {
					"type": "string"
				},
				"assertion": {
					"type": "string"
				},
				"userData": {
					"type": "object"
				},
				"error": {
					"type": "string"
				}
			}
		},
		"order.Form": {
			"type": "object",
			"properties": {
				"name": {
					"type": "string"
				},
				"phone": {
					"type": "string"
				},
				"remarks": {
					"type": "string"
				}
			}
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Storefront API",
	Description:      "Ordering page backend: catalog, cart, order review and LINE login.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
