// Package docs holds the Swagger document served at /swagger. Regenerate it
// with `swag init -g cmd/cobrew/main.go` after changing handler
// annotations.
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
        "/applications/respond": {
            "get": {
                "produces": ["text/html"],
                "tags": ["Applications"],
                "summary": "Accept or reject an application from an email link",
                "parameters": [
                    {"type": "string", "name": "applicationId", "in": "query", "required": true},
                    {"type": "string", "name": "action", "in": "query", "required": true},
                    {"type": "string", "name": "token", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Confirmation page"},
                    "400": {"description": "Invalid parameters"},
                    "404": {"description": "Application not found"},
                    "409": {"description": "Already responded"}
                }
            }
        },
        "/v1/auth/signup": {"post": {"tags": ["Auth"], "summary": "Create an account", "responses": {"200": {"description": "Tokens"}}}},
        "/v1/auth/login": {"post": {"tags": ["Auth"], "summary": "Log in with email and password", "responses": {"200": {"description": "Tokens"}}}},
        "/v1/auth/refresh": {"post": {"tags": ["Auth"], "summary": "Exchange a refresh token", "responses": {"200": {"description": "Tokens"}}}},
        "/v1/profile": {
            "get": {"security": [{"Bearer": []}], "tags": ["Profile"], "summary": "Current user with profile completion", "responses": {"200": {"description": "Profile"}}},
            "put": {"security": [{"Bearer": []}], "tags": ["Profile"], "summary": "Update the profile", "responses": {"200": {"description": "Profile"}, "400": {"description": "Request parameter error"}}}
        },
        "/v1/users/discover": {"get": {"security": [{"Bearer": []}], "tags": ["Users"], "summary": "Find collaborators with a profile at least 70% complete", "parameters": [{"type": "string", "name": "q", "in": "query"}], "responses": {"200": {"description": "Users"}}}},
        "/v1/projects": {
            "get": {"security": [{"Bearer": []}], "tags": ["Projects"], "summary": "Browse projects, newest first", "responses": {"200": {"description": "Projects"}}},
            "post": {"security": [{"Bearer": []}], "tags": ["Projects"], "summary": "Post a new project", "responses": {"200": {"description": "Created project"}}}
        },
        "/v1/projects/mine": {"get": {"security": [{"Bearer": []}], "tags": ["Projects"], "summary": "Projects created by the current user", "responses": {"200": {"description": "Projects"}}}},
        "/v1/projects/{id}": {"get": {"security": [{"Bearer": []}], "tags": ["Projects"], "summary": "Project detail with owner", "responses": {"200": {"description": "Project"}, "404": {"description": "Project not found"}}}},
        "/v1/projects/{id}/applications": {
            "get": {"security": [{"Bearer": []}], "tags": ["Applications"], "summary": "Pending applications of one project", "responses": {"200": {"description": "Pending applications"}}},
            "post": {"security": [{"Bearer": []}], "tags": ["Applications"], "summary": "Apply to a project", "responses": {"200": {"description": "Pending application"}, "409": {"description": "Already pending"}}}
        },
        "/v1/projects/{id}/applications/{appId}": {"put": {"security": [{"Bearer": []}], "tags": ["Applications"], "summary": "Accept or reject from the project panel", "responses": {"200": {"description": "Decided application"}, "409": {"description": "Already responded"}}}},
        "/v1/projects/{id}/chat": {
            "get": {"security": [{"Bearer": []}], "tags": ["Chat"], "summary": "Project chat history, newest 200 visible to the caller", "responses": {"200": {"description": "Messages"}}},
            "post": {"security": [{"Bearer": []}], "tags": ["Chat"], "summary": "Send a direct message to the project owner", "responses": {"200": {"description": "Stored message"}}}
        },
        "/v1/applications/mine": {"get": {"security": [{"Bearer": []}], "tags": ["Applications"], "summary": "Applications sent by the current user", "responses": {"200": {"description": "Applications"}}}},
        "/v1/applications/{id}/accept": {"post": {"security": [{"Bearer": []}], "tags": ["Applications"], "summary": "Accept a pending application from the dashboard", "responses": {"200": {"description": "Accepted application"}, "409": {"description": "Already responded"}}}},
        "/v1/applications/{id}/reject": {"post": {"security": [{"Bearer": []}], "tags": ["Applications"], "summary": "Reject a pending application from the dashboard", "responses": {"200": {"description": "Rejected application"}, "409": {"description": "Already responded"}}}},
        "/v1/notifications/applications": {"get": {"security": [{"Bearer": []}], "tags": ["Notifications"], "summary": "Pending applications to the current user's projects", "responses": {"200": {"description": "Pending applications"}}}},
        "/v1/notifications/applications/watch": {"get": {"security": [{"Bearer": []}], "tags": ["Notifications"], "summary": "Live pending applications (websocket)", "responses": {"101": {"description": "Switching protocols"}}}},
        "/v1/functions/project-chat-init": {"post": {"security": [{"Bearer": []}], "tags": ["Functions"], "summary": "Accept an application and open the project chat", "responses": {"200": {"description": "Accepted"}}}},
        "/v1/functions/notify-applicant": {"post": {"security": [{"Bearer": []}], "tags": ["Functions"], "summary": "Email the applicant about a decision", "responses": {"200": {"description": "Email queued"}}}},
        "/v1/functions/send-project-application-email": {"post": {"security": [{"Bearer": []}], "tags": ["Functions"], "summary": "Email the project owner about an application", "responses": {"200": {"description": "Sent"}}}},
        "/v1/admin/outbox": {"get": {"security": [{"Bearer": []}], "tags": ["Outbox"], "summary": "List outbox items", "responses": {"200": {"description": "Outbox items"}}}},
        "/v1/admin/outbox/{id}/requeue": {"post": {"security": [{"Bearer": []}], "tags": ["Outbox"], "summary": "Retry a dead outbox item", "responses": {"200": {"description": "Requeued"}}}},
        "/metrics": {"get": {"tags": ["Metrics"], "summary": "Prometheus metrics", "responses": {"200": {"description": "Prometheus exposition"}}}}
    },
    "securityDefinitions": {
        "Bearer": {
            "description": "POST /v1/auth/login and send 'Bearer ${TOKEN}'",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "",
	Schemes:          []string{},
	Title:            "CO-brew API",
	Description:      "API server for CO-brew, where makers post projects and review the applications of collaborators.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
