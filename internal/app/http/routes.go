package routes

import (
	auditlogsapi "flowvault/internal/api/auditlogs"
	authapi "flowvault/internal/api/auth"
	booksapi "flowvault/internal/api/books"
	clientsapi "flowvault/internal/api/clients"
	deliveriesapi "flowvault/internal/api/deliveries"
	pagesapi "flowvault/internal/api/pages"
	processingapi "flowvault/internal/api/processing"
	projectsapi "flowvault/internal/api/projects"
	queuesapi "flowvault/internal/api/queues"
	usersapi "flowvault/internal/api/users"
	"flowvault/internal/app/http/middleware"
	"flowvault/internal/domain/users"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	public := r.Group("/")
	public.Use(middleware.SanitizeAndCleanInputMiddleware())
	public.POST("/login", authapi.Login)

	// Authenticated
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware(), middleware.SanitizeAndCleanInputMiddleware())

	auth.GET("/books", booksapi.ListBooks)
	auth.GET("/books/:id", booksapi.GetBook)
	auth.POST("/books", booksapi.CreateBook)
	auth.POST("/books/import", booksapi.ImportBooks)
	auth.PUT("/books/:id", booksapi.UpdateBook)
	auth.POST("/books/:id/transition", booksapi.Transition)
	auth.POST("/books/:id/complete-scan", booksapi.CompleteScan)
	auth.POST("/books/:id/pages", pagesapi.AddPage)

	auth.GET("/pages", pagesapi.ListPages)
	auth.PUT("/pages/:id", pagesapi.UpdatePage)

	auth.GET("/queues/:role", queuesapi.GetQueue)

	auth.GET("/deliveries", deliveriesapi.ListDeliveries)
	auth.GET("/deliveries/:id", deliveriesapi.GetDelivery)
	auth.POST("/deliveries", deliveriesapi.CreateDelivery)
	auth.POST("/deliveries/:id/distribute", deliveriesapi.Distribute)
	auth.PUT("/deliveries/items/:itemId", deliveriesapi.DecideItem)
	auth.POST("/deliveries/:id/finalize", deliveriesapi.Finalize)

	auth.GET("/processing", processingapi.ListBatches)
	auth.GET("/processing/:id", processingapi.GetBatch)
	auth.POST("/processing", processingapi.CreateBatch)
	auth.PUT("/processing/:id", processingapi.UpdateBatch)
	auth.PUT("/processing/items/:itemId", processingapi.UpdateItem)

	auth.GET("/projects", projectsapi.ListProjects)
	auth.GET("/projects/:id", projectsapi.GetProject)
	auth.GET("/projects/:id/workflow", projectsapi.GetWorkflow)

	auth.GET("/clients", clientsapi.ListClients)
	auth.GET("/clients/:id", clientsapi.GetClient)
	auth.GET("/clients/:id/rejection-tags", clientsapi.ListRejectionTags)

	auth.GET("/users", usersapi.ListUsers)
	auth.GET("/users/assignable", usersapi.ListAssignable)

	auth.GET("/audit-logs", auditlogsapi.ListLogs)

	// Admin only
	admin := r.Group("/")
	admin.Use(middleware.AuthMiddleware(), middleware.SanitizeAndCleanInputMiddleware(),
		middleware.RequireRole(users.RoleAdmin))

	admin.DELETE("/books/:id", booksapi.DeleteBook)
	admin.POST("/books/:id/override", booksapi.OverrideStatus)
	admin.POST("/books/:id/reassign", booksapi.ReassignTask)
	admin.DELETE("/pages/:id", pagesapi.DeletePage)

	admin.POST("/projects", projectsapi.CreateProject)
	admin.PUT("/projects/:id", projectsapi.UpdateProject)
	admin.PUT("/projects/:id/workflow", projectsapi.UpdateWorkflow)

	admin.POST("/clients", clientsapi.CreateClient)
	admin.PUT("/clients/:id", clientsapi.UpdateClient)
	admin.POST("/clients/:id/rejection-tags", clientsapi.CreateRejectionTag)
	admin.DELETE("/rejection-tags/:tagId", clientsapi.DeleteRejectionTag)

	admin.POST("/users", usersapi.CreateUser)
	admin.PUT("/users/:id", usersapi.UpdateUser)
}
