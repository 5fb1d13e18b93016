package router

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"julianmorley.ca/pasargad/storefront/pkg/global"
	"julianmorley.ca/pasargad/storefront/pkg/models"
)

func (h *Handler) GetProfile(c *gin.Context) {
	user, err := session(c).API.GetProfile(c.Request.Context())
	if err != nil {
		respondError(c, err, "", nil)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(user))
}

// UpdateProfile saves the profile and refreshes the signed-in user.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var update models.ProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid request body", nil))
		return
	}

	sess := session(c)
	ctx := c.Request.Context()
	user, err := sess.API.UpdateProfile(ctx, update)
	if err != nil {
		respondError(c, err, "", nil)
		return
	}
	sess.Store.SetUser(ctx, user, sess.Store.Token())
	sess.Store.AddNotification(models.NotificationSuccess, "Profile updated successfully")
	c.JSON(http.StatusOK, global.SuccessResponse(user))
}

func (h *Handler) UpdateCustomer(c *gin.Context) {
	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid request body", nil))
		return
	}

	customer, err := session(c).API.UpdateCustomer(c.Request.Context(), fields)
	if err != nil {
		respondError(c, err, "", nil)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(customer))
}

func (h *Handler) ListActivities(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	activities, err := session(c).API.ListActivities(c.Request.Context(), page)
	if err != nil {
		respondError(c, err, "", nil)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(activities))
}

func (h *Handler) GetPreferences(c *gin.Context) {
	prefs, err := session(c).API.GetNotificationPreferences(c.Request.Context())
	if err != nil {
		respondError(c, err, "", nil)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(prefs))
}

func (h *Handler) UpdatePreferences(c *gin.Context) {
	var prefs models.NotificationPreferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid request body", nil))
		return
	}

	updated, err := session(c).API.UpdateNotificationPreferences(c.Request.Context(), prefs)
	if err != nil {
		respondError(c, err, "", nil)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(updated))
}

// Address book

func (h *Handler) ListAddresses(c *gin.Context) {
	addresses, err := session(c).API.ListAddresses(c.Request.Context())
	if err != nil {
		respondError(c, err, "", nil)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(addresses))
}

func (h *Handler) UpdateAddress(c *gin.Context) {
	id, ok := itemParam(c)
	if !ok {
		return
	}
	var address models.ShippingAddress
	if err := c.ShouldBindJSON(&address); err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid request body", nil))
		return
	}

	updated, err := session(c).API.UpdateAddress(c.Request.Context(), id, address)
	if err != nil {
		respondError(c, err, "", nil)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(updated))
}

func (h *Handler) DeleteAddress(c *gin.Context) {
	id, ok := itemParam(c)
	if !ok {
		return
	}

	if err := session(c).API.DeleteAddress(c.Request.Context(), id); err != nil {
		respondError(c, err, "", nil)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(map[string]int{"deleted": id}))
}

// Order history

func (h *Handler) BulkOrders(c *gin.Context) {
	var req models.BulkOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid request body", nil))
		return
	}

	sess := session(c)
	resp, err := sess.API.BulkOrderOperation(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "", nil)
		return
	}
	sess.Store.AddNotification(models.NotificationSuccess, resp.Message)
	c.JSON(http.StatusOK, global.SuccessResponse(resp))
}

func (h *Handler) ExportOrders(c *gin.Context) {
	csv, err := session(c).API.ExportOrdersCSV(c.Request.Context())
	if err != nil {
		respondError(c, err, "", nil)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="orders.csv"`)
	c.Data(http.StatusOK, "text/csv", csv)
}
