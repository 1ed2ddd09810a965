package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "College Timetable API",
        "description": "Allocation conflict detection and persistence for college timetables",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Allocations", "description": "Timetable allocation entries"},
        {"name": "Conflicts", "description": "Teacher and room double-booking checks"},
        {"name": "Backups", "description": "Store snapshots taken before each write"},
        {"name": "Exports", "description": "Signed PDF timetable downloads"},
        {"name": "Reference", "description": "Reference data cache"}
    ],
    "paths": {
        "/allocations": {
            "get": {
                "tags": ["Allocations"],
                "summary": "List allocations",
                "parameters": [
                    {"name": "semesterId", "in": "query", "type": "string"},
                    {"name": "teacherId", "in": "query", "type": "string"},
                    {"name": "timeSlotId", "in": "query", "type": "string"},
                    {"name": "day", "in": "query", "type": "string"},
                    {"name": "room", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Allocations"],
                "summary": "Create allocation",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AllocationRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Teacher or room double-booked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/allocations/{id}": {
            "get": {
                "tags": ["Allocations"],
                "summary": "Get allocation",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Allocations"],
                "summary": "Update allocation",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AllocationRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Teacher or room double-booked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Allocations"],
                "summary": "Delete allocation",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/allocations/{id}/slot": {
            "patch": {
                "tags": ["Allocations"],
                "summary": "Move allocation to another slot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MoveAllocationRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Teacher or room double-booked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/allocations/{id}/active": {
            "patch": {
                "tags": ["Allocations"],
                "summary": "Activate or deactivate allocation",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetActiveRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/allocations/persist": {
            "post": {
                "tags": ["Allocations"],
                "summary": "Merge or replace the stored allocation set",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PersistAllocationsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Required fields missing", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "500": {"description": "Storage failure", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/allocations/conflicts": {
            "post": {
                "tags": ["Conflicts"],
                "summary": "Report conflicts of entries against the stored set",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ConflictCheckRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/allocations/conflicts/groups": {
            "post": {
                "tags": ["Conflicts"],
                "summary": "Describe conflicts for recurring groups",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GroupConflictCheckRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/allocations/backups": {
            "get": {
                "tags": ["Backups"],
                "summary": "List store backups",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/allocations/backups/restore": {
            "post": {
                "tags": ["Backups"],
                "summary": "Replace the store with a backup",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RestoreBackupRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "500": {"description": "Backup unreadable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/timetable": {
            "post": {
                "tags": ["Exports"],
                "summary": "Render the sorted timetable as PDF",
                "parameters": [
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/TimetableExportRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a rendered timetable",
                "produces": ["application/pdf"],
                "parameters": [{"name": "token", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "PDF file"},
                    "404": {"description": "Unknown token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "410": {"description": "Link expired", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reference/refresh": {
            "post": {
                "tags": ["Reference"],
                "summary": "Drop cached reference data",
                "responses": {
                    "204": {"description": "Invalidated"}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "summary": "Engine metrics snapshot",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Allocation": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "subjectId": {"type": "string"},
                "teacherId": {"type": "string"},
                "timeSlotId": {"type": "string"},
                "day": {"type": "string"},
                "dayId": {"type": "string"},
                "room": {"type": "string"},
                "roomId": {"type": "string"},
                "semesterId": {"type": "string"},
                "isActive": {"type": "boolean"}
            },
            "required": ["id", "subjectId", "teacherId", "timeSlotId", "day", "semesterId"]
        },
        "AllocationRequest": {
            "type": "object",
            "properties": {
                "subjectId": {"type": "string"},
                "teacherId": {"type": "string"},
                "timeSlotId": {"type": "string"},
                "day": {"type": "string"},
                "dayId": {"type": "string"},
                "room": {"type": "string"},
                "roomId": {"type": "string"},
                "semesterId": {"type": "string"},
                "isActive": {"type": "boolean"}
            },
            "required": ["subjectId", "teacherId", "timeSlotId", "day", "semesterId"]
        },
        "MoveAllocationRequest": {
            "type": "object",
            "properties": {
                "timeSlotId": {"type": "string"},
                "day": {"type": "string"},
                "dayId": {"type": "string"}
            },
            "required": ["timeSlotId"]
        },
        "SetActiveRequest": {
            "type": "object",
            "properties": {"isActive": {"type": "boolean"}},
            "required": ["isActive"]
        },
        "PersistAllocationsRequest": {
            "type": "object",
            "properties": {
                "mode": {"type": "string", "enum": ["merge", "replace"]},
                "allocations": {"type": "array", "items": {"$ref": "#/definitions/Allocation"}}
            },
            "required": ["allocations"]
        },
        "ConflictCheckRequest": {
            "type": "object",
            "properties": {
                "entries": {"type": "array", "items": {"$ref": "#/definitions/Allocation"}}
            },
            "required": ["entries"]
        },
        "GroupConflictCheckRequest": {
            "type": "object",
            "properties": {
                "groups": {"type": "array", "items": {"type": "array", "items": {"$ref": "#/definitions/Allocation"}}}
            },
            "required": ["groups"]
        },
        "RestoreBackupRequest": {
            "type": "object",
            "properties": {"name": {"type": "string"}},
            "required": ["name"]
        },
        "TimetableExportRequest": {
            "type": "object",
            "properties": {
                "semesterId": {"type": "string"},
                "title": {"type": "string"},
                "activeOnly": {"type": "boolean"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
