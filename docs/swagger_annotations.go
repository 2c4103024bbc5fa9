// Package docs provides Swagger API documentation
// This file contains the shared Swagger tag annotations for the payment service API
package docs

// @tag.name checkout
// @tag.description Hosted checkout sessions and popup gateway orders

// @tag.name webhooks
// @tag.description Signed payment provider webhook ingestion

// @tag.name admin
// @tag.description Token-protected analytics proxy endpoints

// @tag.name health
// @tag.description Health check and monitoring endpoints
