// Package docs holds the swagger document served at /swagger/.
package docs

import "github.com/swaggo/swag"

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
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Health check",
                "responses": {"200": {"description": "Service is up"}}
            }
        },
        "/jobs": {
            "get": {
                "description": "Get every known job, newest first",
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "List jobs",
                "responses": {
                    "200": {"description": "List of jobs", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.Job"}}}
                }
            },
            "post": {
                "description": "Upload a CSV or XLSX file as multipart field \"file\", or send the raw CSV as the request body with ?name=",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Submit a dataset",
                "parameters": [
                    {"type": "file", "description": "Dataset file", "name": "file", "in": "formData"},
                    {"type": "string", "description": "File name for raw bodies", "name": "name", "in": "query"},
                    {"type": "string", "description": "Caller id used for enrichment quota", "name": "X-User-ID", "in": "header"}
                ],
                "responses": {
                    "202": {"description": "Job accepted", "schema": {"$ref": "#/definitions/model.Job"}},
                    "400": {"description": "Invalid upload"},
                    "500": {"description": "Internal server error"}
                }
            }
        },
        "/jobs/{id}": {
            "get": {
                "description": "Retrieve the current state of a job",
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Get job",
                "parameters": [{"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Job details", "schema": {"$ref": "#/definitions/model.Job"}},
                    "404": {"description": "Job not found"}
                }
            }
        },
        "/jobs/{id}/summary": {
            "get": {
                "description": "Retrieve the data summary of a processed job",
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Get job summary",
                "parameters": [{"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Data summary", "schema": {"type": "object"}},
                    "404": {"description": "Job not found"},
                    "409": {"description": "Job has no summary yet"}
                }
            }
        },
        "/jobs/{id}/errors": {
            "get": {
                "description": "Retrieve every recorded failed attempt of a job",
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Get job errors",
                "parameters": [{"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Job errors", "schema": {"type": "object"}},
                    "404": {"description": "Job not found"}
                }
            }
        },
        "/jobs/{id}/events": {
            "get": {
                "description": "Server-sent events carrying the job after every change, until it finishes",
                "produces": ["text/event-stream"],
                "tags": ["jobs"],
                "summary": "Stream job events",
                "parameters": [{"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Stream of job states"},
                    "404": {"description": "Job not found"}
                }
            }
        },
        "/jobs/{id}/export": {
            "get": {
                "description": "Download the dataset on top of the job's snapshot stack as csv, json or xlsx",
                "produces": ["text/csv", "application/json", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "tags": ["jobs"],
                "summary": "Export job dataset",
                "parameters": [
                    {"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "csv (default), json or xlsx", "name": "format", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Dataset", "schema": {"type": "file"}},
                    "400": {"description": "Unknown format"},
                    "404": {"description": "Job not found"},
                    "409": {"description": "Job not completed"}
                }
            }
        },
        "/jobs/{id}/clean": {
            "post": {
                "description": "Fill missing values and trim text, pushing a new snapshot",
                "produces": ["application/json"],
                "tags": ["snapshots"],
                "summary": "Clean dataset",
                "parameters": [{"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Updated job", "schema": {"$ref": "#/definitions/model.Job"}},
                    "404": {"description": "Job not found"},
                    "409": {"description": "Job not completed"}
                }
            }
        },
        "/jobs/{id}/deduplicate": {
            "post": {
                "description": "Remove duplicate rows, pushing a new snapshot",
                "produces": ["application/json"],
                "tags": ["snapshots"],
                "summary": "Deduplicate dataset",
                "parameters": [{"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Updated job", "schema": {"$ref": "#/definitions/model.Job"}},
                    "404": {"description": "Job not found"},
                    "409": {"description": "Job not completed"}
                }
            }
        },
        "/jobs/{id}/undo": {
            "post": {
                "description": "Pop the current snapshot and re-analyze the previous one",
                "produces": ["application/json"],
                "tags": ["snapshots"],
                "summary": "Undo last change",
                "parameters": [{"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Updated job", "schema": {"$ref": "#/definitions/model.Job"}},
                    "404": {"description": "Job not found"},
                    "409": {"description": "Job not completed"}
                }
            }
        }
    },
    "definitions": {
        "model.Job": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "userId": {"type": "string"},
                "sourcePath": {"type": "string"},
                "cacheKey": {"type": "string"},
                "status": {"type": "string", "enum": ["PENDING", "PROCESSING", "AI_REASONING", "COMPLETED", "FAILED"]},
                "dataStack": {"type": "array", "items": {"type": "integer"}},
                "summary": {"type": "object"},
                "retryCount": {"type": "integer"},
                "error": {"type": "string"},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "2.1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Insight Pipeline API",
	Description:      "Submit tabular datasets, follow their processing and edit their snapshots.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
