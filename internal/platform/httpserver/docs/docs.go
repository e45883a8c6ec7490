// Package docs registers the OpenAPI document served under /swagger/.
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
        "/v1/ledger/candidates": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ledger"],
                "summary": "List candidates",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/ledger.CandidatesResponse"}
                    }
                }
            }
        },
        "/v1/ledger/votes": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["ledger"],
                "summary": "Cast a vote",
                "parameters": [
                    {
                        "type": "string",
                        "description": "voter identity",
                        "name": "X-User-Id",
                        "in": "header",
                        "required": true
                    },
                    {
                        "description": "ballot",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/ledger.CastVoteRequest"}
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {"$ref": "#/definitions/ledger.BallotResponse"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ledger.ErrorResponse"}
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {"$ref": "#/definitions/ledger.ErrorResponse"}
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {"$ref": "#/definitions/ledger.ErrorResponse"}
                    }
                }
            }
        },
        "/v1/ledger/standings": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ledger"],
                "summary": "Current standings",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/ledger.StandingsResponse"}
                    }
                }
            }
        },
        "/v1/ledger/voters/{voter_id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ledger"],
                "summary": "Voter participation",
                "parameters": [
                    {
                        "type": "string",
                        "description": "voter identity",
                        "name": "voter_id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/ledger.VoterStatusResponse"}
                    }
                }
            }
        }
    },
    "definitions": {
        "ledger.BallotResponse": {
            "type": "object",
            "properties": {
                "ballot_id": {"type": "string"},
                "voter_id": {"type": "string"},
                "candidate_index": {"type": "integer"},
                "candidate_name": {"type": "string"},
                "cast_at": {"type": "string"}
            }
        },
        "ledger.CandidateItem": {
            "type": "object",
            "properties": {
                "index": {"type": "integer"},
                "name": {"type": "string"},
                "vote_count": {"type": "integer"}
            }
        },
        "ledger.CandidatesResponse": {
            "type": "object",
            "properties": {
                "items": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/ledger.CandidateItem"}
                }
            }
        },
        "ledger.CastVoteRequest": {
            "type": "object",
            "required": ["candidate_index"],
            "properties": {
                "candidate_index": {"type": "integer"}
            }
        },
        "ledger.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "ledger.StandingsResponse": {
            "type": "object",
            "properties": {
                "items": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/ledger.CandidateItem"}
                },
                "leaders": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/ledger.CandidateItem"}
                },
                "total_votes": {"type": "integer"}
            }
        },
        "ledger.VoterStatusResponse": {
            "type": "object",
            "properties": {
                "has_voted": {"type": "boolean"},
                "voter_id": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "tally vote ledger API",
	Description:      "One-vote-per-voter ballot ledger.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
