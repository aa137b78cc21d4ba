package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, campaign, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeRPGNotFound        = "RPG_NOT_FOUND"
	ErrCodeCharacterNotFound  = "CHARACTER_NOT_FOUND"
	ErrCodeEventNotFound      = "EVENT_NOT_FOUND"
	ErrCodeEventTypeNotFound  = "EVENT_TYPE_NOT_FOUND"
	ErrCodeEventTypeDuplicate = "EVENT_TYPE_DUPLICATE"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidCredentialsError はメールアドレスまたはパスワードの不一致エラーを生成する。
// どちらが誤っているかは区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "キャンペーンのゲームマスターまたは管理者に依頼してください。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "validation",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewValidationError は入力値の検証エラーを生成する。
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力値が不正です（%s）: %s", field, reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewRPGNotFoundError はキャンペーン未検出エラーを生成する。
func NewRPGNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeRPGNotFound,
		Message:  fmt.Sprintf("指定されたキャンペーンが見つかりません: %d", id),
		Category: "campaign",
		Action:   "キャンペーンIDを確認してください。",
	}
}

// NewCharacterNotFoundError はキャラクター未検出エラーを生成する。
func NewCharacterNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeCharacterNotFound,
		Message:  fmt.Sprintf("指定されたキャラクターが見つかりません: %d", id),
		Category: "campaign",
		Action:   "キャラクターIDを確認してください。",
	}
}

// NewEventNotFoundError はイベント未検出エラーを生成する。
func NewEventNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeEventNotFound,
		Message:  fmt.Sprintf("指定されたイベントが見つかりません: %d", id),
		Category: "campaign",
		Action:   "イベントIDを確認してください。",
	}
}

// NewEventTypeNotFoundError はイベント種別未検出エラーを生成する。
func NewEventTypeNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeEventTypeNotFound,
		Message:  fmt.Sprintf("指定されたイベント種別が見つかりません: %d", id),
		Category: "campaign",
		Action:   "イベント種別の一覧を確認してください。",
	}
}

// NewEventTypeDuplicateError はイベント種別名の重複エラーを生成する。
func NewEventTypeDuplicateError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeEventTypeDuplicate,
		Message:  fmt.Sprintf("イベント種別は既に存在します: %s", name),
		Category: "campaign",
		Action:   "既存のイベント種別を使用してください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
