// Package jsondb keeps users, access tokens and blogs in memory and persists
// them to a JSON file when the storage is closed.
package jsondb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/blogsbook/internal/models"
)

// JSONDB is a file-backed storage. All methods are safe for concurrent use.
type JSONDB struct {
	fileName string
	mu       sync.RWMutex
	Cache    CacheStruct
}

// CacheStruct is the document persisted to the JSON file.
type CacheStruct struct {
	Users        map[string]*models.User
	AccessTokens map[string]*models.AccessToken
	Blogs        map[string]*models.Blog
}

// NewCache returns an empty, ready to use CacheStruct.
func NewCache() CacheStruct {
	return CacheStruct{
		Users:        map[string]*models.User{},
		AccessTokens: map[string]*models.AccessToken{},
		Blogs:        map[string]*models.Blog{},
	}
}

func initDBFile(fileName string) error {
	dbFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(dbFile, `{
	"Users": {},
	"AccessTokens": {},
	"Blogs": {}
}`)
	if err != nil {
		return err
	}
	return dbFile.Close()
}

func writeToJSONFile(fileName string, cache interface{}) error {
	jsonData, err := json.MarshalIndent(cache, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}

	file, err := os.OpenFile(fileName, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("error opening file: %w", err)
	}
	defer file.Close()

	if _, err = file.Write(jsonData); err != nil {
		return fmt.Errorf("error writing to file: %w", err)
	}

	return nil
}

func parseJSONFile(fileName string, cache *CacheStruct) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(cache)
}

// New loads fileName, creating an empty database file when it is absent.
func New(fileName string) (*JSONDB, error) {
	db := &JSONDB{
		fileName: fileName,
		Cache:    NewCache(),
	}

	err := parseJSONFile(db.fileName, &db.Cache)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := initDBFile(fileName); err != nil {
			return nil, err
		}
		if err := parseJSONFile(db.fileName, &db.Cache); err != nil {
			return nil, err
		}
	}
	db.ensureMaps()

	return db, nil
}

func (db *JSONDB) ensureMaps() {
	if db.Cache.Users == nil {
		db.Cache.Users = map[string]*models.User{}
	}
	if db.Cache.AccessTokens == nil {
		db.Cache.AccessTokens = map[string]*models.AccessToken{}
	}
	if db.Cache.Blogs == nil {
		db.Cache.Blogs = map[string]*models.Blog{}
	}
}

func (db *JSONDB) Ping(ctx context.Context) error {
	return nil
}

// Close flushes the cache to the database file.
func (db *JSONDB) Close() error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return writeToJSONFile(db.fileName, db.Cache)
}

func (db *JSONDB) CreateUser(ctx context.Context, usr *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.Cache.Users {
		if existing.Username == usr.Username {
			return models.ErrUsernameTaken
		}
	}
	stored := *usr
	db.Cache.Users[usr.ID] = &stored

	return nil
}

func (db *JSONDB) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	usr, found := db.Cache.Users[userID]
	if !found {
		return nil, models.ErrRecordNotFound
	}
	result := *usr

	return &result, nil
}

func (db *JSONDB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, usr := range db.Cache.Users {
		if usr.Username == username {
			result := *usr
			return &result, nil
		}
	}

	return nil, models.ErrRecordNotFound
}

func (db *JSONDB) GetUsersByIDs(ctx context.Context, userIDs []string) ([]models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	result := []models.User{}
	for _, userID := range funk.UniqString(userIDs) {
		if usr, found := db.Cache.Users[userID]; found {
			result = append(result, *usr)
		}
	}
	sortUsers(result)

	return result, nil
}

func (db *JSONDB) GetAllUsers(ctx context.Context) ([]models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	result := make([]models.User, 0, len(db.Cache.Users))
	for _, usr := range db.Cache.Users {
		result = append(result, *usr)
	}
	sortUsers(result)

	return result, nil
}

func (db *JSONDB) UpdateUserPassword(ctx context.Context, userID, password string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	usr, found := db.Cache.Users[userID]
	if !found {
		return models.ErrRecordNotFound
	}
	usr.Password = password

	return nil
}

func (db *JSONDB) DeleteUser(ctx context.Context, userID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, found := db.Cache.Users[userID]; !found {
		return models.ErrRecordNotFound
	}
	delete(db.Cache.Users, userID)

	return nil
}

func (db *JSONDB) DeleteAllUsers(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.Cache.Users = map[string]*models.User{}

	return nil
}

func (db *JSONDB) InsertAccessToken(ctx context.Context, token *models.AccessToken) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored := *token
	db.Cache.AccessTokens[token.ID] = &stored

	return nil
}

func (db *JSONDB) FindAccessTokenByValue(ctx context.Context, value string) (*models.AccessToken, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, token := range db.Cache.AccessTokens {
		if token.Token == value {
			result := *token
			return &result, nil
		}
	}

	return nil, models.ErrRecordNotFound
}

func (db *JSONDB) FindAccessTokenByID(ctx context.Context, tokenID string) (*models.AccessToken, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	token, found := db.Cache.AccessTokens[tokenID]
	if !found {
		return nil, models.ErrRecordNotFound
	}
	result := *token

	return &result, nil
}

// DeleteAccessTokensByUserIDs drops every token issued to one of userIDs and
// reports how many were removed.
func (db *JSONDB) DeleteAccessTokensByUserIDs(ctx context.Context, userIDs []string) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var removed int64
	for tokenID, token := range db.Cache.AccessTokens {
		if funk.ContainsString(userIDs, token.UserID) {
			delete(db.Cache.AccessTokens, tokenID)
			removed++
		}
	}

	return removed, nil
}

func (db *JSONDB) InsertBlog(ctx context.Context, blog *models.Blog) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored := *blog
	db.Cache.Blogs[blog.ID] = &stored

	return nil
}

func (db *JSONDB) GetBlogByID(ctx context.Context, blogID string) (*models.Blog, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	blog, found := db.Cache.Blogs[blogID]
	if !found {
		return nil, models.ErrRecordNotFound
	}
	result := *blog

	return &result, nil
}

// GetBlogs lists the blogs of authorID, or every blog when authorID is empty.
func (db *JSONDB) GetBlogs(ctx context.Context, authorID string) ([]models.Blog, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	all := make([]models.Blog, 0, len(db.Cache.Blogs))
	for _, blog := range db.Cache.Blogs {
		all = append(all, *blog)
	}
	result := funk.Filter(all, func(blog models.Blog) bool {
		return authorID == "" || blog.AuthorID == authorID
	}).([]models.Blog)
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return result, nil
}

// UpdateBlog applies patch to the blog only while it still belongs to authorID.
func (db *JSONDB) UpdateBlog(
	ctx context.Context,
	blogID,
	authorID string,
	patch models.BlogPatch,
) (*models.Blog, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	blog, found := db.Cache.Blogs[blogID]
	if !found || blog.AuthorID != authorID {
		return nil, models.ErrRecordNotFound
	}
	if patch.Title != nil {
		blog.Title = *patch.Title
	}
	if patch.Content != nil {
		blog.Content = *patch.Content
	}
	result := *blog

	return &result, nil
}

// DeleteBlog removes the blog only while it still belongs to authorID.
func (db *JSONDB) DeleteBlog(ctx context.Context, blogID, authorID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	blog, found := db.Cache.Blogs[blogID]
	if !found || blog.AuthorID != authorID {
		return models.ErrRecordNotFound
	}
	delete(db.Cache.Blogs, blogID)

	return nil
}

func sortUsers(users []models.User) {
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
}
