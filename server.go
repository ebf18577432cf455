package main

import (
	"flag"
	"fmt"
	"log"

	"teamhub/api/middleware"
	"teamhub/api/routes"
	"teamhub/config"
	"teamhub/db"
	"teamhub/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	err := config.LoadConfig(configPath)
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	log.Println("Starting server...")

	if err := db.ConnectDB(); err != nil {
		panic("Failed to connect to the database: " + err.Error())
	}
	if err := db.CreateMessageIndexes(db.ORM); err != nil {
		panic("Failed to create message indexes: " + err.Error())
	}
	if err := db.CreateTeamMemberIndexes(db.ORM); err != nil {
		panic("Failed to create team member indexes: " + err.Error())
	}

	// Redis нужен для кеша дерева и CSRF-токенов; без него работаем
	// на запасных путях
	if err := services.InitRedis(); err != nil {
		log.Printf("Warning: Redis unavailable, using fallbacks: %v", err)
	}
	defer services.CloseRedis()

	if err := services.InitRabbitMQ(); err != nil {
		log.Printf("Warning: RabbitMQ unavailable, messaging events disabled: %v", err)
	}
	defer services.CloseRabbitMQ()

	services.InitMessagingService()

	router := gin.Default()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.PrometheusMiddleware("teamhub"))

	routes.PublicApi(router)
	routes.MessagingApi(router, middleware.AuthMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := ":8080"
	if config.AppConfig.Backend.Port != 0 {
		addr = fmt.Sprintf(":%d", config.AppConfig.Backend.Port)
	}
	if err := router.Run(addr); err != nil {
		panic(err)
	}
}
