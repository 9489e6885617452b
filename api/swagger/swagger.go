package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Campus Fees API",
        "description": "Student fee obligations, payments and alerting",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Fee Types", "description": "Fee template catalogue"},
        {"name": "Student Fees", "description": "Fee obligations per student"},
        {"name": "Payments", "description": "Fee settlement and history"},
        {"name": "Alerts", "description": "Fee alert notifications"},
        {"name": "Exports", "description": "Register downloads"}
    ],
    "paths": {
        "/fee-types": {
            "get": {
                "tags": ["Fee Types"],
                "summary": "List fee templates",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/fee-types/cache": {
            "delete": {
                "tags": ["Fee Types"],
                "summary": "Drop the cached fee template catalogue",
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/fee-types/{id}": {
            "get": {
                "tags": ["Fee Types"],
                "summary": "Get a fee template",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{studentId}/fees": {
            "get": {
                "tags": ["Student Fees"],
                "summary": "List a student's fees for a period",
                "description": "Materialises any missing fees for the period before listing.",
                "parameters": [
                    {"name": "studentId", "in": "path", "type": "string", "required": true},
                    {"name": "semester", "in": "query", "type": "string", "required": true},
                    {"name": "academicYear", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Student not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{studentId}/fees/pending": {
            "get": {
                "tags": ["Student Fees"],
                "summary": "List a student's pending fees",
                "parameters": [
                    {"name": "studentId", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{studentId}/fees/initial": {
            "post": {
                "tags": ["Student Fees"],
                "summary": "Seed the fee schedule for a newly registered student",
                "parameters": [
                    {"name": "studentId", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Student not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{studentId}/payments": {
            "get": {
                "tags": ["Payments"],
                "summary": "List a student's payment history",
                "parameters": [
                    {"name": "studentId", "in": "path", "type": "string", "required": true},
                    {"name": "semester", "in": "query", "type": "string"},
                    {"name": "academicYear", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/fees/pending": {
            "get": {
                "tags": ["Student Fees"],
                "summary": "List pending fees across students",
                "parameters": [
                    {"name": "semester", "in": "query", "type": "string"},
                    {"name": "academicYear", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/fees/pending/export": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export pending fees",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "semester", "in": "query", "type": "string"},
                    {"name": "academicYear", "in": "query", "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File attachment"}
                }
            }
        },
        "/payments": {
            "post": {
                "tags": ["Payments"],
                "summary": "Settle a student fee",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ProcessPaymentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Fee not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Fee already paid", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "get": {
                "tags": ["Payments"],
                "summary": "List payment history",
                "parameters": [
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "semester", "in": "query", "type": "string"},
                    {"name": "academicYear", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payments/export": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export the payment register",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "semester", "in": "query", "type": "string"},
                    {"name": "academicYear", "in": "query", "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File attachment"}
                }
            }
        },
        "/alerts": {
            "post": {
                "tags": ["Alerts"],
                "summary": "Send a fee alert",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateAlertRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Alert already sent", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "get": {
                "tags": ["Alerts"],
                "summary": "List fee alerts",
                "parameters": [
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "studentFeeId", "in": "query", "type": "string"},
                    {"name": "sentBy", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/alerts/batch": {
            "post": {
                "tags": ["Alerts"],
                "summary": "Send a batch of fee alerts",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"type": "array", "items": {"$ref": "#/definitions/CreateAlertRequest"}}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/alerts/exists": {
            "get": {
                "tags": ["Alerts"],
                "summary": "Check whether the caller already alerted a fee",
                "parameters": [
                    {"name": "studentId", "in": "query", "type": "string", "required": true},
                    {"name": "studentFeeId", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/alerts/{id}": {
            "delete": {
                "tags": ["Alerts"],
                "summary": "Delete a fee alert",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "ProcessPaymentRequest": {
            "type": "object",
            "required": ["student_fee_id", "method"],
            "properties": {
                "student_fee_id": {"type": "string"},
                "method": {"type": "string", "enum": ["CASH", "CREDIT_CARD", "DEBIT_CARD", "BANK_TRANSFER", "ONLINE_PAYMENT"]},
                "transaction_ref": {"type": "string"}
            }
        },
        "CreateAlertRequest": {
            "type": "object",
            "required": ["student_id", "student_fee_id", "message"],
            "properties": {
                "student_id": {"type": "string"},
                "student_fee_id": {"type": "string"},
                "message": {"type": "string"}
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
