// Package docs contains the Swagger API documentation
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "termsOfService": "http://swagger.io/terms/",
        "contact": {
            "name": "API Support",
            "email": "support@example.com"
        },
        "license": {
            "name": "Apache 2.0",
            "url": "http://www.apache.org/licenses/LICENSE-2.0.html"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/v1/builder/structure": {
            "get": {
                "produces": ["application/json"],
                "tags": ["builder"],
                "summary": "Get the current schedule structure",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}}
                }
            }
        },
        "/api/v1/builder/days": {
            "post": {
                "description": "Appends an empty day column; duplicate names are rejected",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["builder"],
                "summary": "Add a day to the schedule structure",
                "parameters": [
                    {"description": "Day name", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddDayRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/v1/builder/days/{day}/duplicate": {
            "post": {
                "description": "Deep-copies the source day under a derived unique name",
                "produces": ["application/json"],
                "tags": ["builder"],
                "summary": "Duplicate a day with all its slots, rules and pins",
                "parameters": [
                    {"type": "string", "description": "Source day name", "name": "day", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Returns the new day name", "schema": {"type": "object"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/v1/builder/slots": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["builder"],
                "summary": "Add a time slot to a day",
                "parameters": [
                    {"description": "Day and time range", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddSlotRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/SuccessResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/v1/builder/rules": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["builder"],
                "summary": "Attach a room rule to a time slot",
                "parameters": [
                    {"description": "Rule", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddRuleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/SuccessResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/v1/settings": {
            "get": {
                "produces": ["application/json"],
                "tags": ["settings"],
                "summary": "Collect the workspace into one canonical settings record",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}}
                }
            },
            "put": {
                "description": "Accepts both the canonical nested shape and the legacy flat shape",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["settings"],
                "summary": "Replace the entire workspace from a settings record",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/SuccessResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/v1/snapshots": {
            "get": {
                "produces": ["application/json"],
                "tags": ["snapshots"],
                "summary": "List saved snapshots",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"type": "object"}}}
                }
            },
            "post": {
                "description": "Saving under an existing name overwrites that snapshot",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["snapshots"],
                "summary": "Save the current workspace as a named snapshot",
                "parameters": [
                    {"description": "Snapshot name", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SnapshotRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/SuccessResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/v1/generation/start": {
            "post": {
                "description": "Collects the workspace into a settings record and submits it to the solver",
                "produces": ["application/json"],
                "tags": ["generation"],
                "summary": "Start a schedule generation",
                "parameters": [
                    {"type": "string", "description": "Idempotency key", "name": "X-Request-ID", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "Returns session_id", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/v1/generation/stop": {
            "post": {
                "description": "Fire-and-forget cancellation; a result already in flight still lands",
                "produces": ["application/json"],
                "tags": ["generation"],
                "summary": "Stop the running generation",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/SuccessResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/v1/generation/session": {
            "get": {
                "produces": ["application/json"],
                "tags": ["generation"],
                "summary": "Get the current generation session",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/v1/inventory": {
            "get": {
                "description": "Served from the Redis cache when fresh, otherwise fetched from the solver",
                "produces": ["application/json"],
                "tags": ["inventory"],
                "summary": "Get the teacher/course/room/level lists",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "description": "Reports MySQL, Redis and cached solver health",
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Service health",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}}
                }
            }
        }
    },
    "definitions": {
        "AddDayRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string", "example": "Sunday"}
            }
        },
        "AddSlotRequest": {
            "type": "object",
            "required": ["day", "time_range"],
            "properties": {
                "day": {"type": "string", "example": "Sunday"},
                "time_range": {"type": "string", "example": "08:00-09:30"}
            }
        },
        "AddRuleRequest": {
            "type": "object",
            "required": ["day", "time_range", "rule_type"],
            "properties": {
                "day": {"type": "string"},
                "time_range": {"type": "string"},
                "rule_type": {"type": "string", "example": "SPECIFIC_LARGE_HALL"},
                "levels": {"type": "array", "items": {"type": "string"}},
                "hall_name": {"type": "string"}
            }
        },
        "SnapshotRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string", "example": "autumn draft 3"}
            }
        },
        "ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "Invalid request"},
                "message": {"type": "string", "example": "Detailed error message"},
                "code": {"type": "integer", "example": 400}
            }
        },
        "SuccessResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean", "example": true},
                "message": {"type": "string", "example": "Operation completed"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Timetable Console Service API",
	Description:      "Console service API for timetable settings editing, solver-driven schedule generation with live progress streaming, and named snapshot management.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
