package router

import (
	"realtime_chat_service/internal/chat/app"
	"realtime_chat_service/internal/chat/comm"
	"realtime_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes 註冊聊天服務路由
// @title Realtime Chat Service API
// @version 1.0
// @description REST and websocket API of the realtime chat service
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func RegisterRoutes(r *fiber.App, chatWebsocket *app.ChatWebsocketHandler, chatHTTP *app.ChatHTTPHandler) {
	r.Use(recover.New())
	r.Get("/swagger/*", swagger.HandlerDefault)
	r.Get("/", comm.ConnectCheck)
	r.Post("/debug", comm.DebugLogFlag)

	api := r.Group("/api", middlewares.JWTMiddleware())
	api.Get("/chats", chatHTTP.ListChats)
	api.Post("/chats/direct", chatHTTP.CreateDirect)
	api.Delete("/chats/:id", chatHTTP.DeleteChat)
	api.Get("/chats/:id/messages", chatHTTP.ListMessages)
	api.Post("/attachments/presign", chatHTTP.PresignAttachment)

	r.Use("/ws", middlewares.JWTMiddleware(), func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	r.Get("/ws", websocket.New(chatWebsocket.HandleConnection))
}
