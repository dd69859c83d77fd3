package configdef

type Resolver interface {
	Resolve() (Values, error)
}

type Creator interface {
	Create() error
}

type Destroyer interface {
	Destroy() error
}

type CreateResolver interface {
	Creator
	Resolver
}
