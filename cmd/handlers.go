package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func (p *catalogContext) searchHandler(c *gin.Context) {
	cl := clientContext{}
	cl.init(p, c)

	s := searchContext{}
	s.init(p, &cl)

	if err := c.ShouldBindJSON(&s.req); err != nil {
		cl.err("invalid search request: %s", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid search request"})
		return
	}

	cl.logRequest()
	resp := s.handleSearchRequest()
	cl.logResponse(resp)

	if resp.err != nil {
		c.JSON(resp.status, gin.H{"error": resp.err.Error()})
		return
	}

	c.JSON(resp.status, resp.data)
}

func (p *catalogContext) facetsHandler(c *gin.Context) {
	cl := clientContext{}
	cl.init(p, c)

	s := searchContext{}
	s.init(p, &cl)

	if err := c.ShouldBindJSON(&s.req); err != nil {
		cl.err("invalid facets request: %s", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid facets request"})
		return
	}

	cl.logRequest()
	resp := s.handleFacetsRequest()
	cl.logResponse(resp)

	if resp.err != nil {
		c.JSON(resp.status, gin.H{"error": resp.err.Error()})
		return
	}

	c.JSON(resp.status, resp.data)
}

func (p *catalogContext) resourceHandler(c *gin.Context) {
	cl := clientContext{}
	cl.init(p, c)

	s := searchContext{}
	s.init(p, &cl)

	cl.logRequest()
	resp := s.handleRecordRequest(c.Param("type"), c.Param("id"))
	cl.logResponse(resp)

	if resp.err != nil {
		c.String(resp.status, resp.err.Error())
		return
	}

	c.JSON(resp.status, resp.data)
}

func (p *catalogContext) ignoreHandler(c *gin.Context) {
}

func (p *catalogContext) versionHandler(c *gin.Context) {
	cl := clientContext{}
	cl.init(p, c)

	c.JSON(http.StatusOK, p.version)
}

func (p *catalogContext) healthCheckHandler(c *gin.Context) {
	cl := clientContext{}
	cl.init(p, c)

	s := searchContext{}
	s.init(p, &cl)

	ping := s.handlePingRequest()

	// build response

	internalServiceError := false

	type hcResp struct {
		Healthy bool   `json:"healthy"`
		Message string `json:"message,omitempty"`
	}

	hcSolr := hcResp{Healthy: true}
	if ping.err != nil {
		internalServiceError = true
		hcSolr = hcResp{Healthy: false, Message: ping.err.Error()}
	}

	hcMap := make(map[string]hcResp)
	hcMap["solr"] = hcSolr

	hcStatus := http.StatusOK
	if internalServiceError == true {
		hcStatus = http.StatusInternalServerError
	}

	c.JSON(hcStatus, hcMap)
}

// schema administration endpoints; destructive, so gated on admin auth

func (p *catalogContext) schemaInitHandler(c *gin.Context) {
	exists, err := p.registry.checkFieldsExistence()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if exists == true {
		c.JSON(http.StatusConflict, gin.H{"error": "catalog fields already exist; use update or delete first"})
		return
	}

	if err := p.registry.createFields(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "created"})
}

func (p *catalogContext) schemaUpdateHandler(c *gin.Context) {
	if err := p.registry.updateFields(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (p *catalogContext) schemaDeleteHandler(c *gin.Context) {
	if err := p.registry.deleteFields(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (p *catalogContext) suggesterInitHandler(c *gin.Context) {
	if err := p.registry.configureSuggester(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "configured"})
}

func (p *catalogContext) schemaCheckHandler(c *gin.Context) {
	status := make(map[string]bool)

	for _, name := range p.registry.order {
		ok, err := p.registry.checkSchema(name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		drift, err := p.registry.fieldTypeMismatch(name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		status[name] = ok && drift == false
	}

	c.JSON(http.StatusOK, status)
}

func (p *catalogContext) commitHandler(c *gin.Context) {
	soft := boolOptionWithFallback(c.Query("soft"), false)

	if err := p.registry.commit(soft); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "committed"})
}

func getBearerToken(authorization string) (string, error) {
	components := strings.Split(strings.Join(strings.Fields(authorization), " "), " ")

	// must have two components, the first of which is "Bearer", and the second a non-empty token
	if len(components) != 2 || components[0] != "Bearer" || components[1] == "" {
		return "", fmt.Errorf("invalid Authorization header: [%s]", authorization)
	}

	return components[1], nil
}

func (p *catalogContext) authenticateHandler(c *gin.Context) {
	token, err := getBearerToken(c.GetHeader("Authorization"))
	if err != nil {
		log.Printf("authentication failed: [%s]", err.Error())
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	claims := jwt.MapClaims{}

	_, err = jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); ok == false {
			return nil, errors.New("unexpected signing method")
		}

		return []byte(p.config.Service.JWTKey), nil
	})

	if err != nil {
		log.Printf("JWT signature is invalid: %s", err.Error())
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	c.Set("token", token)
	c.Set("claims", claims)
}

func (p *catalogContext) adminHandler(c *gin.Context) {
	val, ok := c.Get("claims")

	if ok == false {
		log.Printf("no claims")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	claims := val.(jwt.MapClaims)

	if role, _ := claims["role"].(string); role != "admin" {
		log.Printf("insufficient permissions")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
}
