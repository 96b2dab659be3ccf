package admin

import (
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-storefront/services"
	"github.com/sahilchouksey/course-storefront/services/storage"
	"github.com/sahilchouksey/course-storefront/utils/response"
	"github.com/sahilchouksey/course-storefront/utils/validation"
	"gorm.io/gorm"
)

// MaxUploadSize caps course archives sent through the API. Larger files go
// through a presigned upload.
const MaxUploadSize = 500 << 20

// AdminHandler handles catalog administration
type AdminHandler struct {
	db        *gorm.DB
	courses   *services.CourseService
	validator *validation.Validator
}

func NewAdminHandler(db *gorm.DB, courses *services.CourseService) *AdminHandler {
	return &AdminHandler{
		db:        db,
		courses:   courses,
		validator: validation.NewValidator(),
	}
}

// CreateCourseRequest represents the request body for creating a course
type CreateCourseRequest struct {
	Title         string   `json:"title" form:"title" validate:"required,min=3,max=255"`
	Description   string   `json:"description" form:"description" validate:"omitempty,max=5000"`
	Price         float64  `json:"price" form:"price" validate:"required,gt=0"`
	OriginalPrice *float64 `json:"originalPrice" form:"originalPrice" validate:"omitempty,gte=0"`
	Active        bool     `json:"active" form:"active"`
}

// UpdateCourseRequest represents the request body for updating a course.
// FileKey attaches an archive that was uploaded through a presigned URL.
type UpdateCourseRequest struct {
	Title         *string  `json:"title" validate:"omitempty,min=3,max=255"`
	Description   *string  `json:"description" validate:"omitempty,max=5000"`
	Price         *float64 `json:"price" validate:"omitempty,gt=0"`
	OriginalPrice *float64 `json:"originalPrice" validate:"omitempty,gte=0"`
	Active        *bool    `json:"active"`
	FileKey       *string  `json:"fileKey" validate:"omitempty,min=1,max=1024"`
	FileSize      *int64   `json:"fileSize" validate:"omitempty,gte=0"`
	MimeType      *string  `json:"mimeType" validate:"omitempty,max=100"`
}

// PresignRequest asks for a direct upload URL.
type PresignRequest struct {
	Filename    string `json:"filename" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"omitempty,max=100"`
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm)
}

func parseID(c *fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// openFile returns the uploaded archive from the "file" form field, or nil
// when the request carries none. The caller closes the returned file.
func openFile(c *fiber.Ctx) (*services.CourseFile, multipart.File, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, nil, nil
	}
	if fh.Size > MaxUploadSize {
		return nil, nil, fiber.NewError(fiber.StatusRequestEntityTooLarge, "File exceeds the upload limit")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}

	contentType := fh.Header.Get(fiber.HeaderContentType)
	if contentType == "" || contentType == fiber.MIMEOctetStream {
		contentType = storage.ContentType(fh.Filename)
	}

	return &services.CourseFile{
		Name:        fh.Filename,
		ContentType: contentType,
		Size:        fh.Size,
		Body:        f,
	}, f, nil
}

// ListCourses handles GET /api/v1/admin/courses, drafts included.
func (h *AdminHandler) ListCourses(c *fiber.Ctx) error {
	courses, err := h.courses.ListAll(c.UserContext())
	if err != nil {
		return response.FromServiceError(c, err)
	}
	return response.Success(c, courses)
}

// GetCourse handles GET /api/v1/admin/courses/:id
func (h *AdminHandler) GetCourse(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return response.BadRequest(c, "Invalid course ID")
	}
	course, err := h.courses.Get(c.UserContext(), id, true)
	if err != nil {
		return response.FromServiceError(c, err)
	}
	return response.Success(c, course)
}

// CreateCourse handles POST /api/v1/admin/courses. It accepts JSON or a
// multipart form with an optional "file" archive.
func (h *AdminHandler) CreateCourse(c *fiber.Ctx) error {
	var req CreateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var file *services.CourseFile
	if isMultipart(c) {
		cf, f, err := openFile(c)
		if err != nil {
			return fileError(c, err)
		}
		if f != nil {
			defer f.Close()
		}
		file = cf
	}

	course, err := h.courses.Create(c.UserContext(), services.CourseInput{
		Title:         req.Title,
		Description:   req.Description,
		Price:         req.Price,
		OriginalPrice: req.OriginalPrice,
		Active:        req.Active,
	}, file)
	if err != nil {
		return response.FromServiceError(c, err)
	}
	return response.Created(c, course)
}

// UpdateCourse handles PUT /api/v1/admin/courses/:id. A multipart request
// with a "file" part replaces the stored archive.
func (h *AdminHandler) UpdateCourse(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return response.BadRequest(c, "Invalid course ID")
	}

	var (
		update services.CourseUpdate
		file   *services.CourseFile
	)

	if isMultipart(c) {
		update = formUpdate(c)
		cf, f, err := openFile(c)
		if err != nil {
			return fileError(c, err)
		}
		if f != nil {
			defer f.Close()
		}
		file = cf
	} else {
		var req UpdateCourseRequest
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "Invalid request body")
		}
		if err := h.validator.ValidateStruct(req); err != nil {
			return response.ValidationError(c, err)
		}
		update = services.CourseUpdate{
			Title:         req.Title,
			Description:   req.Description,
			Price:         req.Price,
			OriginalPrice: req.OriginalPrice,
			Active:        req.Active,
			FileKey:       req.FileKey,
			FileSize:      req.FileSize,
			MimeType:      req.MimeType,
		}
	}

	course, err := h.courses.Update(c.UserContext(), id, update, file)
	if err != nil {
		return response.FromServiceError(c, err)
	}
	return response.Success(c, course)
}

// DeleteCourse handles DELETE /api/v1/admin/courses/:id
func (h *AdminHandler) DeleteCourse(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return response.BadRequest(c, "Invalid course ID")
	}
	if err := h.courses.Delete(c.UserContext(), id); err != nil {
		return response.FromServiceError(c, err)
	}
	return response.SuccessWithMessage(c, "Course deleted", nil)
}

// PresignUpload handles POST /api/v1/admin/upload/presigned-url
func (h *AdminHandler) PresignUpload(c *fiber.Ctx) error {
	var req PresignRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	upload, err := h.courses.PresignUpload(c.UserContext(), req.Filename, req.ContentType)
	if err != nil {
		return response.FromServiceError(c, err)
	}
	return response.Success(c, upload)
}

// formUpdate reads the optional text fields of a multipart update.
func formUpdate(c *fiber.Ctx) services.CourseUpdate {
	var u services.CourseUpdate
	if v := c.FormValue("title"); v != "" {
		u.Title = &v
	}
	if v := c.FormValue("description"); v != "" {
		u.Description = &v
	}
	if v, err := strconv.ParseFloat(c.FormValue("price"), 64); err == nil {
		u.Price = &v
	}
	if v, err := strconv.ParseFloat(c.FormValue("originalPrice"), 64); err == nil {
		u.OriginalPrice = &v
	}
	if v, err := strconv.ParseBool(c.FormValue("active")); err == nil {
		u.Active = &v
	}
	return u
}

func fileError(c *fiber.Ctx, err error) error {
	if fe, ok := err.(*fiber.Error); ok {
		return response.Error(c, fe.Code, fe.Message, "FILE_TOO_LARGE")
	}
	return response.BadRequest(c, "Could not read uploaded file")
}
