package docs

import "github.com/swaggo/swag"

// @title           TaskTrack API
// @version         1.0
// @description     API for tracking tasks, task dependencies, and the audit timeline of changes

// @host      localhost:8080
// @BasePath  /

// @tag.name Users
// @tag.description User directory operations

// @tag.name Tasks
// @tag.description Task management operations

// @tag.name Dependencies
// @tag.description Task dependency graph operations

// @tag.name Timeline
// @tag.description Per-user audit timeline

var instance = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Title:            "TaskTrack API",
	Description:      "API for tracking tasks, task dependencies, and the audit timeline of changes",
	InfoInstanceName: swag.Name,
}

// Register swagger info
func SwaggerInfo() *swag.Spec {
	return instance
}
