package datamapper

// Mapper converts between a domain object and a flat storage Record and translates field names and
// values between the domain and the storage vocabulary.
type Mapper interface {
	// Kind describes the entity kind handled by this mapper.
	Kind() Kind

	// Instantiate creates an empty entity of the right (sub)kind for the given record.
	Instantiate(record Record) (Entity, error)

	// Hydrate writes the record's values into the entity.
	Hydrate(entity Entity, record Record) error

	// Extract reads the entity into a record in the storage vocabulary.
	Extract(entity Entity) (Record, error)

	NameToDomain(storageName string) string
	NameToStorage(domainName string) string

	// ValueToDomain and ValueToStorage convert one value of the field with the given domain name.
	ValueToDomain(field string, storageValue any) (any, error)
	ValueToStorage(field string, domainValue any) (any, error)

	// UniqueIndexFields returns the domain names of the fields forming the unique index, in key order.
	UniqueIndexFields() []string
}

// BaseMapper implements the name and value translation parts of Mapper from a field table.
// Concrete mappers embed it and add Kind, Instantiate, Hydrate and Extract.
type BaseMapper struct {
	toStorage   map[string]string
	toDomain    map[string]string
	uniqueIndex []string
}

// NewBaseMapper creates a BaseMapper from a domain name -> storage name table.
// Fields missing from the table keep their name in both vocabularies.
func NewBaseMapper(fields map[string]string, uniqueIndex ...string) BaseMapper {
	bm := BaseMapper{
		toStorage:   make(map[string]string, len(fields)),
		toDomain:    make(map[string]string, len(fields)),
		uniqueIndex: uniqueIndex,
	}

	for domainName, storageName := range fields {
		bm.toStorage[domainName] = storageName
		bm.toDomain[storageName] = domainName
	}

	return bm
}

// NameToDomain translates a storage field name into its domain name.
func (bm BaseMapper) NameToDomain(storageName string) string {
	if name, ok := bm.toDomain[storageName]; ok {
		return name
	}

	return storageName
}

// NameToStorage translates a domain field name into its storage name.
func (bm BaseMapper) NameToStorage(domainName string) string {
	if name, ok := bm.toStorage[domainName]; ok {
		return name
	}

	return domainName
}

// ValueToDomain returns the storage value unchanged.
func (bm BaseMapper) ValueToDomain(_ string, storageValue any) (any, error) {
	return storageValue, nil
}

// ValueToStorage returns the domain value unchanged.
func (bm BaseMapper) ValueToStorage(_ string, domainValue any) (any, error) {
	return domainValue, nil
}

// UniqueIndexFields returns the configured unique index fields.
func (bm BaseMapper) UniqueIndexFields() []string {
	return bm.uniqueIndex
}
