// Package docs holds the OpenAPI document served under /swagger when the
// server is built with -tags=swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/": {
            "get": {
                "tags": ["meta"],
                "summary": "Liveness banner",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.IndexResponse"}}}
            }
        },
        "/models": {
            "get": {
                "tags": ["meta"],
                "summary": "List configured models",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelsResponse"}}}
            }
        },
        "/status": {
            "get": {
                "tags": ["meta"],
                "summary": "Model, queue and cache status",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/predict": {
            "post": {
                "tags": ["segment"],
                "summary": "Point-prompted segmentation",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/types.PredictRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/box_segment": {
            "post": {
                "tags": ["segment"],
                "summary": "Box-prompted segmentation",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/types.BoxSegmentRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/auto_segment": {
            "post": {
                "tags": ["segment"],
                "summary": "Automatic mask generation",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/types.AutoSegmentRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/auto_segment_adaptive": {
            "post": {
                "tags": ["segment"],
                "summary": "Automatic mask generation with size-based parameters",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/types.AutoSegmentRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/compute_embedding": {
            "post": {
                "tags": ["segment"],
                "summary": "Precompute and cache an image embedding",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/types.ComputeEmbeddingRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ComputeEmbeddingResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "types.IndexResponse": {"type": "object", "properties": {"message": {"type": "string", "example": "SAM2 Server is running"}}},
        "types.ErrorResponse": {"type": "object", "properties": {"error": {"type": "string", "example": "Invalid image path"}, "code": {"type": "integer", "example": 400}}},
        "types.ModelsResponse": {"type": "object", "properties": {"models": {"type": "array", "items": {"type": "object"}}}},
        "types.PointPrompt": {"type": "object", "properties": {
            "point_coords": {"type": "array", "items": {"type": "array", "items": {"type": "number"}}},
            "point_labels": {"type": "array", "items": {"type": "integer"}}
        }},
        "types.PredictRequest": {"type": "object", "properties": {
            "image_path": {"type": "string", "example": "/data/cells/plate01.png"},
            "prompts": {"type": "array", "items": {"$ref": "#/definitions/types.PointPrompt"}},
            "model": {"type": "string"}
        }},
        "types.BoxSegmentRequest": {"type": "object", "properties": {
            "image_path": {"type": "string", "example": "/data/cells/plate01.png"},
            "box_coords": {"type": "array", "items": {"type": "number"}},
            "model": {"type": "string"}
        }},
        "types.AutoSegmentRequest": {"type": "object", "properties": {
            "image_path": {"type": "string", "example": "/data/cells/plate01.png"},
            "combined": {"type": "boolean"},
            "model": {"type": "string"}
        }},
        "types.ComputeEmbeddingRequest": {"type": "object", "properties": {
            "image_path": {"type": "string", "example": "/data/cells/plate01.png"},
            "model": {"type": "string"}
        }},
        "types.ComputeEmbeddingResponse": {"type": "object", "properties": {
            "status": {"type": "string", "example": "embedding computed"},
            "embedding_id": {"type": "string"},
            "model": {"type": "string"},
            "cache_key": {"type": "string"}
        }}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "segd API",
	Description:      "SAM2 and micro-sam segmentation server.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
