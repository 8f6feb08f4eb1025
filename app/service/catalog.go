package service

import (
	"context"
	"strconv"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/vibast-solutions/ms-go-memberships/app/entity"
	"github.com/vibast-solutions/ms-go-memberships/config"
	"golang.org/x/sync/singleflight"
)

const (
	catalogListKey     = "published"
	catalogPackageSize = 256
)

type packageRepository interface {
	FindByID(ctx context.Context, id uint64) (*entity.Package, error)
	FindAnyByID(ctx context.Context, id uint64) (*entity.Package, error)
	ListPublished(ctx context.Context) ([]*entity.Package, error)
}

type catalogMetrics interface {
	CatalogCache(hit bool)
}

// CatalogService serves published packages. Reads go through a short-lived
// LRU and concurrent misses for the same key share one query.
type CatalogService struct {
	repo     packageRepository
	lists    *expirable.LRU[string, []*entity.Package]
	packages *expirable.LRU[uint64, *entity.Package]
	group    singleflight.Group
	metrics  catalogMetrics
}

func NewCatalogService(repo packageRepository, cfg config.MembershipConfig, metrics catalogMetrics) *CatalogService {
	s := &CatalogService{repo: repo, metrics: metrics}
	if cfg.CatalogCacheTTL > 0 {
		s.lists = expirable.NewLRU[string, []*entity.Package](1, nil, cfg.CatalogCacheTTL)
		s.packages = expirable.NewLRU[uint64, *entity.Package](catalogPackageSize, nil, cfg.CatalogCacheTTL)
	}
	return s
}

func (s *CatalogService) ListPackages(ctx context.Context) ([]*entity.Package, error) {
	if s.lists != nil {
		if items, ok := s.lists.Get(catalogListKey); ok {
			s.recordCache(true)
			return items, nil
		}
		s.recordCache(false)
	}

	v, err, _ := s.group.Do("list", func() (interface{}, error) {
		items, err := s.repo.ListPublished(ctx)
		if err != nil {
			return nil, err
		}
		if s.lists != nil {
			s.lists.Add(catalogListKey, items)
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*entity.Package), nil
}

func (s *CatalogService) GetPackage(ctx context.Context, id uint64) (*entity.Package, error) {
	if id == 0 {
		return nil, ErrPackageNotFound
	}
	if s.packages != nil {
		if pkg, ok := s.packages.Get(id); ok {
			s.recordCache(true)
			return pkg, nil
		}
		s.recordCache(false)
	}

	v, err, _ := s.group.Do("package:"+strconv.FormatUint(id, 10), func() (interface{}, error) {
		pkg, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if pkg != nil && s.packages != nil {
			s.packages.Add(id, pkg)
		}
		return pkg, nil
	})
	if err != nil {
		return nil, err
	}
	pkg := v.(*entity.Package)
	if pkg == nil {
		return nil, ErrPackageNotFound
	}
	return pkg, nil
}

// HeldPackage loads the package a membership is on, published or not. It
// skips the cache so renewals see the current price and term.
func (s *CatalogService) HeldPackage(ctx context.Context, id uint64) (*entity.Package, error) {
	if id == 0 {
		return nil, ErrPackageNotFound
	}
	v, err, _ := s.group.Do("held:"+strconv.FormatUint(id, 10), func() (interface{}, error) {
		return s.repo.FindAnyByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	pkg := v.(*entity.Package)
	if pkg == nil {
		return nil, ErrPackageNotFound
	}
	return pkg, nil
}

// Invalidate drops every cached package.
func (s *CatalogService) Invalidate() {
	if s.lists != nil {
		s.lists.Purge()
		s.packages.Purge()
	}
}

func (s *CatalogService) recordCache(hit bool) {
	if s.metrics != nil {
		s.metrics.CatalogCache(hit)
	}
}
