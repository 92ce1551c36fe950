package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Kariqs/farmmarket-api/models"
	"github.com/Kariqs/farmmarket-api/services"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/shopspring/decimal"
)

const (
	maxImageSize = 5 << 20

	msgProductDeleted = "product deleted"
	msgInvalidPrice   = "price must be a number"
	msgImageTooLarge  = "image must be 5MB or smaller"
	msgImageNotImage  = "image must be an image file"
)

// GetLatestProducts is the public marketplace feed.
func GetLatestProducts(ctx *gin.Context) {
	products, err := deps.Products.LatestProducts(ctx.Request.Context(), services.LatestProductsLimit)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	sendJSONResponse(ctx, http.StatusOK, gin.H{"products": products})
}

func SearchProducts(ctx *gin.Context) {
	products, err := deps.Products.SearchProducts(ctx.Request.Context(), ctx.Query("q"))
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	sendJSONResponse(ctx, http.StatusOK, gin.H{"products": products})
}

func GetProduct(ctx *gin.Context) {
	productID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	product, err := deps.Products.GetProduct(ctx.Request.Context(), productID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	sendJSONResponse(ctx, http.StatusOK, gin.H{"product": product})
}

// CreateProduct accepts either a multipart listing form with an optional
// "image" file or a JSON body without one.
func CreateProduct(ctx *gin.Context) {
	session, ok := sessionOrAbort(ctx)
	if !ok {
		return
	}

	var (
		input models.ProductInput
		image *services.ImageUpload
	)

	if ctx.ContentType() == binding.MIMEMultipartPOSTForm {
		if err := ctx.ShouldBindWith(&input, binding.FormMultipart); err != nil {
			sendErrorResponse(ctx, http.StatusBadRequest, msgInvalidInput)
			return
		}
		price, err := decimal.NewFromString(strings.TrimSpace(ctx.PostForm("price")))
		if err != nil {
			sendErrorResponse(ctx, http.StatusBadRequest, msgInvalidPrice)
			return
		}
		input.Price = price

		upload, err := imageFromForm(ctx)
		if err != nil {
			sendErrorResponse(ctx, http.StatusBadRequest, err.Error())
			return
		}
		if upload != nil {
			defer upload.close()
			image = &upload.ImageUpload
		}
	} else if err := ctx.ShouldBindJSON(&input); err != nil {
		sendErrorResponse(ctx, http.StatusBadRequest, msgInvalidInput)
		return
	}

	product, err := deps.Products.AddProduct(ctx.Request.Context(), session.ID, input, image)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	sendJSONResponse(ctx, http.StatusCreated, gin.H{"product": product})
}

func GetFarmerProducts(ctx *gin.Context) {
	session, ok := sessionOrAbort(ctx)
	if !ok {
		return
	}

	products, err := deps.Products.ListFarmerProducts(ctx.Request.Context(), session.ID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	sendJSONResponse(ctx, http.StatusOK, gin.H{"products": products})
}

func DeleteProduct(ctx *gin.Context) {
	session, ok := sessionOrAbort(ctx)
	if !ok {
		return
	}
	productID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	if err := deps.Products.DeleteProduct(ctx.Request.Context(), session.ID, productID); err != nil {
		handleServiceError(ctx, err)
		return
	}
	sendJSONResponse(ctx, http.StatusOK, gin.H{"message": msgProductDeleted})
}

type formImage struct {
	services.ImageUpload
	close func() error
}

func imageFromForm(ctx *gin.Context) (*formImage, error) {
	header, err := ctx.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %v", msgInvalidInput, err)
	}
	if header.Size > maxImageSize {
		return nil, errors.New(msgImageTooLarge)
	}
	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, errors.New(msgImageNotImage)
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("%s: %v", msgInvalidInput, err)
	}
	return &formImage{
		ImageUpload: services.ImageUpload{Name: header.Filename, ContentType: contentType, Body: file},
		close:       file.Close,
	}, nil
}
