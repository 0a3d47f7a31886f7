package utils

import (
	"encoding/json"
	"net/http"

	"collab-tracker-backend/pkg/apperrors"
	"collab-tracker-backend/pkg/apperrors/i18n"
)

// APIResponse 标准API响应结构
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError 错误信息结构
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// WriteJSONResponse 写入JSON响应
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := APIResponse{
		Success: statusCode >= 200 && statusCode < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		// 如果编码失败，写入简单的错误响应
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// WriteSuccessResponse 写入成功响应
func WriteSuccessResponse(w http.ResponseWriter, data interface{}) {
	WriteJSONResponse(w, http.StatusOK, data)
}

// WriteCreatedResponse 写入创建成功响应
func WriteCreatedResponse(w http.ResponseWriter, data interface{}) {
	WriteJSONResponse(w, http.StatusCreated, data)
}

// WriteErrorResponseWithCode 写入带错误代码的错误响应
func WriteErrorResponseWithCode(w http.ResponseWriter, statusCode int, code, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// WriteAppError 写入领域错误响应
//
// The status comes from the error kind, the message from the catalog matching
// the request's Accept-Language. The raw error text is only exposed as
// details when debug is set.
func WriteAppError(w http.ResponseWriter, r *http.Request, err error, debug bool) {
	bundle := i18n.Default()
	tag := bundle.Match(r.Header.Get("Accept-Language"))

	code := apperrors.CodeOf(err)
	status := apperrors.HTTPStatus(apperrors.KindOf(err))
	if code == apperrors.CodeUnauthenticated {
		status = http.StatusUnauthorized
	}
	details := ""
	if debug {
		details = err.Error()
	}

	w.Header().Set("Content-Language", tag.String())
	WriteErrorResponseWithCode(w, status, string(code), bundle.Localize(tag, err), details)
}

// WriteBadRequestError 写入400错误响应（请求体无法解析等）
func WriteBadRequestError(w http.ResponseWriter, r *http.Request, cause error, debug bool) {
	WriteAppError(w, r, apperrors.Wrap(apperrors.KindValidation, apperrors.CodeInvalidInput, "decode request", cause), debug)
}

// ParseJSONBody 解析JSON请求体
func ParseJSONBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
