package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Truong Hoc API",
        "description": "School management API: academics, enrollment, billing and attendance",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Authentication and session management"},
        {"name": "Users", "description": "Account administration"},
        {"name": "Academic Years", "description": "Academic year lifecycle"},
        {"name": "Classes", "description": "Class roster management"},
        {"name": "Students", "description": "Student records"},
        {"name": "Teachers", "description": "Teacher records"},
        {"name": "Guardians", "description": "Guardian records and student links"},
        {"name": "Enrollments", "description": "Student ↔ class enrollment"},
        {"name": "Schedules", "description": "Weekly timetable"},
        {"name": "Sessions", "description": "Concrete teaching sessions"},
        {"name": "Attendance", "description": "Roll call and attendance marking"},
        {"name": "Invoices", "description": "Tuition invoicing"},
        {"name": "Payments", "description": "Payment recording and QR confirmation"},
        {"name": "Exports", "description": "Asynchronous report exports"},
        {"name": "Uploads", "description": "File uploads"},
        {"name": "Dashboard", "description": "Aggregated reporting"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        }
    },
    "definitions": {
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"}
            }
        },
        "Envelope": {
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
