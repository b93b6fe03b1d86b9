// Package sse streams server-sent events to HTTP clients.
//
// A Hub keeps the connected clients. Publishers call Broadcast with a glob
// pattern matched against client IDs, so a client registered as
// "logs:primepos:1f2e..." receives everything sent to "logs:primepos:*".
// Sends never block: a client that falls behind loses events.
//
//	hub := sse.NewHub()
//	router.GET("/events", func(c *gin.Context) {
//	    sse.ServeSSE(hub, c.Writer, c.Request, "events:"+uuid.NewString())
//	})
//	hub.Broadcast("events:*", sse.NewEvent(sse.EventTypeMessage, payload))
package sse
