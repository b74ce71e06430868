package main

import (
	"fmt"
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	ginprometheus "github.com/zsais/go-gin-prometheus"
)

/**
 * Main entry point for the web service
 */
func main() {
	log.Printf("===> catalog-solr-ws starting up <===")

	cfg := loadConfig()
	catalog := initializeCatalog(cfg)

	gin.SetMode(gin.ReleaseMode)

	router := gin.Default()

	router.Use(gzip.Gzip(gzip.DefaultCompression))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowCredentials = true
	corsCfg.AddAllowHeaders("Authorization")
	router.Use(cors.New(corsCfg))

	p := ginprometheus.NewPrometheus("gin")

	// roundabout setup of /metrics endpoint to avoid double-gzip of response
	router.Use(p.HandlerFunc())
	h := promhttp.InstrumentMetricHandler(prometheus.DefaultRegisterer, promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{DisableCompression: true}))

	router.GET(p.MetricsPath, func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	})

	pprof.Register(router)

	router.GET("/favicon.ico", catalog.ignoreHandler)

	router.GET("/version", catalog.versionHandler)
	router.GET("/healthcheck", catalog.healthCheckHandler)

	if api := router.Group("/api"); api != nil {
		api.POST("/search", catalog.searchHandler)
		api.POST("/search/facets", catalog.facetsHandler)
		api.GET("/resource/:type/:id", catalog.resourceHandler)
	}

	if admin := router.Group("/admin", catalog.authenticateHandler, catalog.adminHandler); admin != nil {
		admin.POST("/schema/init", catalog.schemaInitHandler)
		admin.POST("/schema/update", catalog.schemaUpdateHandler)
		admin.POST("/schema/delete", catalog.schemaDeleteHandler)
		admin.GET("/schema/check", catalog.schemaCheckHandler)
		admin.POST("/schema/suggester", catalog.suggesterInitHandler)
		admin.POST("/commit", catalog.commitHandler)
	}

	portStr := fmt.Sprintf(":%s", catalog.config.Service.Port)
	log.Printf("Start service on %s", portStr)

	log.Fatal(router.Run(portStr))
}
