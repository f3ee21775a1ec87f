// Package perm holds the permission catalog and the pure set operations
// used for authorization decisions. Nothing in this package performs I/O.
package perm

// Token identifies one grantable capability. The wire representation is the
// raw string; the constant set below is the closed catalog.
type Token string

// Super satisfies every permission check when present in a set.
const Super = Token("admin_access")

// Admin-side permissions.
const (
	AdminUsers    = Token("admin_users")
	AdminRoles    = Token("admin_roles")
	AdminPosts    = Token("admin_posts")
	AdminComments = Token("admin_comments")
	AdminTags     = Token("admin_tags")
	AdminFiles    = Token("admin_files")
	AdminDatabase = Token("admin_database")
	AdminKeys     = Token("admin_keys")
)

// User-side permissions.
const (
	PostCreate    = Token("post_create")
	PostEdit      = Token("post_edit")
	CommentCreate = Token("comment_create")
	FileUpload    = Token("file_upload")
	MessageView   = Token("message_view")
	VoteCast      = Token("vote_cast")
)

var catalog = []Token{
	Super,
	AdminUsers,
	AdminRoles,
	AdminPosts,
	AdminComments,
	AdminTags,
	AdminFiles,
	AdminDatabase,
	AdminKeys,
	PostCreate,
	PostEdit,
	CommentCreate,
	FileUpload,
	MessageView,
	VoteCast,
}

var catalogSet = func() map[Token]struct{} {
	m := make(map[Token]struct{}, len(catalog))
	for _, t := range catalog {
		m[t] = struct{}{}
	}
	return m
}()

// Catalog returns the closed set of known permission tokens.
func Catalog() []Token {
	out := make([]Token, len(catalog))
	copy(out, catalog)
	return out
}

// Valid reports whether t is a member of the catalog.
func Valid(t Token) bool {
	_, ok := catalogSet[t]
	return ok
}
