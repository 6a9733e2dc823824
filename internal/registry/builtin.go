// ABOUTME: Builtin service and type definitions for the upstream REST API.
// ABOUTME: Declarative data only; handlers are bound by the registry factory.

package registry

// BuiltinDefinitions returns the default service set the gateway fronts.
// A definitions file named in config can extend or replace entries.
func BuiltinDefinitions() []ServiceDefinition {
	return []ServiceDefinition{
		{
			Name: "Projects",
			Methods: []MethodDefinition{
				{Name: "list", Description: "List projects visible to the token", RequestType: "ProjectListRequest", Endpoint: "/v1/projects", HTTPMethod: "GET"},
				{Name: "get", Description: "Fetch a single project by id", RequestType: "ProjectGetRequest", Endpoint: "/v1/projects/{id}", HTTPMethod: "GET"},
				{Name: "create", Description: "Create a new project", Write: true, RequestType: "ProjectCreateRequest", Endpoint: "/v1/projects", HTTPMethod: "POST"},
				{Name: "update", Description: "Update project fields", Write: true, RequestType: "ProjectUpdateRequest", Endpoint: "/v1/projects/{id}", HTTPMethod: "PUT"},
				{Name: "archive", Description: "Archive a project", Write: true, RequestType: "ProjectGetRequest", Endpoint: "/v1/projects/{id}/archive", HTTPMethod: "POST"},
			},
		},
		{
			Name: "Tasks",
			Methods: []MethodDefinition{
				{Name: "list", Description: "List tasks, filterable by project and status", RequestType: "TaskListRequest", Endpoint: "/v1/tasks", HTTPMethod: "GET"},
				{Name: "get", Description: "Fetch a single task by id", RequestType: "TaskGetRequest", Endpoint: "/v1/tasks/{id}", HTTPMethod: "GET"},
				{Name: "create", Description: "Create a task in a project", Write: true, RequestType: "TaskCreateRequest", Endpoint: "/v1/tasks", HTTPMethod: "POST"},
				{Name: "update", Description: "Update task fields", Write: true, RequestType: "TaskUpdateRequest", Endpoint: "/v1/tasks/{id}", HTTPMethod: "PUT"},
				{Name: "delete", Description: "Delete a task", Write: true, RequestType: "TaskGetRequest", Endpoint: "/v1/tasks/{id}", HTTPMethod: "DELETE"},
			},
		},
		{
			Name: "Comments",
			Methods: []MethodDefinition{
				{Name: "list", Description: "List comments on a task", RequestType: "CommentListRequest", Endpoint: "/v1/comments", HTTPMethod: "GET"},
				{Name: "create", Description: "Add a comment to a task", Write: true, RequestType: "CommentCreateRequest", Endpoint: "/v1/comments", HTTPMethod: "POST"},
				{Name: "delete", Description: "Delete a comment", Write: true, RequestType: "CommentGetRequest", Endpoint: "/v1/comments/{id}", HTTPMethod: "DELETE"},
			},
		},
		{
			Name: "Users",
			Methods: []MethodDefinition{
				{Name: "list", Description: "List workspace members", RequestType: "UserListRequest", Endpoint: "/v1/users", HTTPMethod: "GET"},
				{Name: "get", Description: "Fetch a user by id", RequestType: "UserGetRequest", Endpoint: "/v1/users/{id}", HTTPMethod: "GET"},
				{Name: "me", Description: "Fetch the user owning the current token", Endpoint: "/v1/users/me", HTTPMethod: "GET"},
			},
		},
		{
			Name: "Webhooks",
			Methods: []MethodDefinition{
				{Name: "list", Description: "List registered webhooks", RequestType: "WebhookListRequest", Endpoint: "/v1/webhooks", HTTPMethod: "GET"},
				{Name: "create", Description: "Register a webhook", Write: true, RequestType: "WebhookCreateRequest", Endpoint: "/v1/webhooks", HTTPMethod: "POST"},
				{Name: "delete", Description: "Remove a webhook", Write: true, RequestType: "WebhookGetRequest", Endpoint: "/v1/webhooks/{id}", HTTPMethod: "DELETE"},
			},
		},
	}
}

// BuiltinTypes returns the type-information table for the builtin services.
// Introspection only; request bodies are never validated against these.
func BuiltinTypes() []TypeInfo {
	return []TypeInfo{
		{Name: "ProjectListRequest", Fields: map[string]string{
			"archived": "bool, include archived projects",
			"limit":    "int, max results, default 50",
			"offset":   "int, pagination offset",
		}},
		{Name: "ProjectGetRequest", Fields: map[string]string{
			"id": "string, project id (required)",
		}},
		{Name: "ProjectCreateRequest", Fields: map[string]string{
			"name":        "string, project name (required)",
			"description": "string, free-form description",
			"color":       "string, hex display color",
		}},
		{Name: "ProjectUpdateRequest", Fields: map[string]string{
			"id":          "string, project id (required)",
			"name":        "string, new project name",
			"description": "string, new description",
		}},
		{Name: "TaskListRequest", Fields: map[string]string{
			"project_id": "string, restrict to one project",
			"status":     "string, open|in_progress|done",
			"assignee":   "string, user id",
			"limit":      "int, max results, default 50",
		}},
		{Name: "TaskGetRequest", Fields: map[string]string{
			"id": "string, task id (required)",
		}},
		{Name: "TaskCreateRequest", Fields: map[string]string{
			"project_id": "string, owning project (required)",
			"title":      "string, task title (required)",
			"body":       "string, task body, markdown",
			"assignee":   "string, user id",
			"due_date":   "string, RFC3339 date",
		}},
		{Name: "TaskUpdateRequest", Fields: map[string]string{
			"id":       "string, task id (required)",
			"title":    "string, new title",
			"status":   "string, open|in_progress|done",
			"assignee": "string, user id",
		}},
		{Name: "CommentListRequest", Fields: map[string]string{
			"task_id": "string, task id (required)",
			"limit":   "int, max results, default 50",
		}},
		{Name: "CommentGetRequest", Fields: map[string]string{
			"id": "string, comment id (required)",
		}},
		{Name: "CommentCreateRequest", Fields: map[string]string{
			"task_id": "string, task id (required)",
			"body":    "string, comment body, markdown (required)",
		}},
		{Name: "UserListRequest", Fields: map[string]string{
			"limit":  "int, max results, default 50",
			"offset": "int, pagination offset",
		}},
		{Name: "UserGetRequest", Fields: map[string]string{
			"id": "string, user id (required)",
		}},
		{Name: "WebhookListRequest", Fields: map[string]string{
			"limit": "int, max results, default 50",
		}},
		{Name: "WebhookGetRequest", Fields: map[string]string{
			"id": "string, webhook id (required)",
		}},
		{Name: "WebhookCreateRequest", Fields: map[string]string{
			"url":    "string, delivery URL (required)",
			"events": "array of string, event names to subscribe",
		}},
	}
}
