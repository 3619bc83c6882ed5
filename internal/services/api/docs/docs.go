// Package docs registers the ops API OpenAPI document with swag
package docs

import "github.com/swaggo/swag/v2"

const docTemplate = `{
  "openapi": "3.1.0",
  "info": {
    "title": "{{.Title}}",
    "description": "{{escape .Description}}",
    "version": "{{.Version}}"
  },
  "components": {
    "securitySchemes": {
      "bearer": {"type": "http", "scheme": "bearer", "bearerFormat": "JWT"}
    },
    "schemas": {
      "AccountRef": {
        "type": "object",
        "required": ["account_id"],
        "properties": {"account_id": {"type": "string"}}
      },
      "AttachResult": {
        "type": "object",
        "properties": {"account_id": {"type": "string"}, "changed": {"type": "boolean"}}
      },
      "ForceResult": {
        "type": "object",
        "properties": {"account_id": {"type": "string"}, "polled": {"type": "boolean"}}
      },
      "PollState": {
        "type": "object",
        "properties": {
          "account_id": {"type": "string"},
          "workspace_id": {"type": "string"},
          "ig_user_id": {"type": "string"},
          "username": {"type": "string"},
          "has_snapshot": {"type": "boolean"},
          "last_follower_count": {"type": "integer"},
          "last_media_count": {"type": "integer"},
          "consecutive_no_change": {"type": "integer"},
          "tier": {"type": "string"},
          "last_activity_at": {"type": "string", "format": "date-time"},
          "last_polled_at": {"type": "string", "format": "date-time"},
          "next_poll_at": {"type": "string", "format": "date-time"}
        }
      },
      "BudgetSnapshot": {
        "type": "object",
        "properties": {
          "ceiling": {"type": "integer"},
          "used": {"type": "integer"},
          "account_limit": {"type": "integer"},
          "min_spacing": {"type": "integer", "description": "nanoseconds"},
          "accounts": {"type": "object", "additionalProperties": {
            "type": "object",
            "properties": {
              "count": {"type": "integer"},
              "window_start": {"type": "string", "format": "date-time"},
              "last_request_at": {"type": "string", "format": "date-time"}
            }
          }}
        }
      },
      "PreviewRequest": {
        "type": "object",
        "required": ["account_id", "class"],
        "properties": {
          "account_id": {"type": "string"},
          "class": {"type": "string", "enum": ["comment", "dm", "mention"]},
          "text": {"type": "string", "maxLength": 2200}
        }
      },
      "PreviewResult": {
        "type": "object",
        "properties": {
          "verdict": {"type": "string"},
          "rule_id": {"type": "string"},
          "rule_name": {"type": "string"},
          "matched": {"type": "string"},
          "reason": {"type": "string"},
          "duplicates": {"type": "array", "items": {"type": "string"}}
        }
      },
      "DispatchStats": {
        "type": "object",
        "properties": {"pending": {"type": "integer"}}
      }
    }
  },
  "security": [{"bearer": []}],
  "paths": {
    "/meta/health": {"get": {"tags": ["meta"], "summary": "Health check", "security": [], "responses": {"200": {"description": "ok"}}}},
    "/meta/ready": {"get": {"tags": ["meta"], "summary": "Readiness with dependency checks", "security": [], "responses": {"200": {"description": "ok"}, "503": {"description": "a dependency is down"}}}},
    "/meta/version": {"get": {"tags": ["meta"], "summary": "Build and version info", "security": [], "responses": {"200": {"description": "ok"}}}},
    "/meta/service": {"get": {"tags": ["meta"], "summary": "Service info and uptime", "security": [], "responses": {"200": {"description": "ok"}}}},
    "/poller/attach": {"post": {
      "tags": ["poller"], "summary": "Attach an account's polling chain",
      "requestBody": {"required": true, "content": {"application/json": {"schema": {"$ref": "#/components/schemas/AccountRef"}}}},
      "responses": {"200": {"description": "ok", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/AttachResult"}}}}}
    }},
    "/poller/detach": {"post": {
      "tags": ["poller"], "summary": "Detach an account's polling chain",
      "requestBody": {"required": true, "content": {"application/json": {"schema": {"$ref": "#/components/schemas/AccountRef"}}}},
      "responses": {"200": {"description": "ok", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/AttachResult"}}}}}
    }},
    "/poller/force": {"post": {
      "tags": ["poller"], "summary": "Poll an account now if the rate budget allows",
      "requestBody": {"required": true, "content": {"application/json": {"schema": {"$ref": "#/components/schemas/AccountRef"}}}},
      "responses": {"200": {"description": "ok", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/ForceResult"}}}}}
    }},
    "/poller/activity": {"post": {
      "tags": ["poller"], "summary": "Promote an account to the active tier",
      "requestBody": {"required": true, "content": {"application/json": {"schema": {"$ref": "#/components/schemas/AccountRef"}}}},
      "responses": {"200": {"description": "ok"}}
    }},
    "/poller/reconcile": {"post": {"tags": ["poller"], "summary": "Sync chains with connected accounts", "responses": {"200": {"description": "ok"}}}},
    "/poller/states": {"get": {
      "tags": ["poller"], "summary": "Current polling state per chain",
      "responses": {"200": {"description": "ok", "content": {"application/json": {"schema": {"type": "array", "items": {"$ref": "#/components/schemas/PollState"}}}}}}
    }},
    "/poller/budget": {"get": {
      "tags": ["poller"], "summary": "Shared hourly request budget",
      "responses": {"200": {"description": "ok", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/BudgetSnapshot"}}}}}
    }},
    "/automation/preview": {"post": {
      "tags": ["automation"], "summary": "Dry run the rule engine for one account",
      "requestBody": {"required": true, "content": {"application/json": {"schema": {"$ref": "#/components/schemas/PreviewRequest"}}}},
      "responses": {"200": {"description": "ok", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/PreviewResult"}}}}}
    }},
    "/automation/dispatch": {"get": {
      "tags": ["automation"], "summary": "Replies waiting on their delay or rate budget",
      "responses": {"200": {"description": "ok", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/DispatchStats"}}}}}
    }}
  }
}`

// SwaggerInfo holds the values docTemplate renders with
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Title:            "instapilot ops API",
	Description:      "Polling control, rule previews and dispatcher state for the engagement automation core.",
	InfoInstanceName: "api",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
