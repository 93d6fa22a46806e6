package etl

import (
	"fmt"
	"strings"
)

// transformFunc builds the cleansing INSERT...SELECT for one table,
// given the fully qualified clean and raw table names.
type transformFunc func(cleanTable, rawTable string) string

func transformSQL(table string) (transformFunc, bool) {
	switch strings.ToLower(table) {
	case "customers":
		return customerTransformSQL, true
	case "products":
		return productTransformSQL, true
	default:
		return nil, false
	}
}

// emailPattern is embedded in a SQL string literal, so the regex
// backslash is doubled for Snowflake's escape handling.
const emailPattern = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\\.[a-zA-Z]{2,}$`

func customerTransformSQL(cleanTable, rawTable string) string {
	return fmt.Sprintf(`INSERT INTO %s
	(CUSTOMER_NUMBER, CUSTOMER_TYPE, COMPANY_NAME, FIRST_NAME, LAST_NAME,
	 EMAIL, PHONE, BIRTH_DATE, GENDER, ANNUAL_INCOME,
	 ADDRESS_LINE_1, ADDRESS_LINE_2, CITY, STATE_PROVINCE, POSTAL_CODE,
	 COUNTRY, REGISTRATION_DATE, VALIDATION_STATUS, PROCESSED_DATE, SOURCE_FILE)
SELECT
	TRIM(UPPER(CUSTOMER_NUMBER)),
	TRIM(UPPER(CUSTOMER_TYPE)),
	TRIM(COMPANY_NAME),
	TRIM(FIRST_NAME),
	TRIM(LAST_NAME),
	LOWER(TRIM(EMAIL)),
	REGEXP_REPLACE(PHONE, '[^0-9]', ''),
	TRY_TO_DATE(BIRTH_DATE),
	UPPER(GENDER),
	TRY_TO_DECIMAL(ANNUAL_INCOME, 15, 2),
	TRIM(ADDRESS_LINE_1),
	TRIM(ADDRESS_LINE_2),
	TRIM(CITY),
	TRIM(STATE_PROVINCE),
	TRIM(POSTAL_CODE),
	TRIM(UPPER(COUNTRY)),
	TRY_TO_DATE(REGISTRATION_DATE),
	'VALID',
	CURRENT_TIMESTAMP(),
	FILE_NAME
FROM %s
WHERE EMAIL RLIKE '%s'
  AND CUSTOMER_NUMBER IS NOT NULL
  AND TRIM(UPPER(CUSTOMER_TYPE)) IN ('INDIVIDUAL', 'BUSINESS')`,
		cleanTable, rawTable, emailPattern)
}

func productTransformSQL(cleanTable, rawTable string) string {
	return fmt.Sprintf(`INSERT INTO %s
	(PRODUCT_NUMBER, PRODUCT_NAME, CATEGORY_NAME, SUPPLIER_NAME, DESCRIPTION,
	 COLOR, SIZE, WEIGHT, UNIT_PRICE, COST, LIST_PRICE, DISCONTINUED,
	 VALIDATION_STATUS, PROCESSED_DATE, SOURCE_FILE)
SELECT
	TRIM(UPPER(PRODUCT_NUMBER)),
	TRIM(PRODUCT_NAME),
	TRIM(CATEGORY_NAME),
	TRIM(SUPPLIER_NAME),
	DESCRIPTION,
	TRIM(UPPER(COLOR)),
	TRIM(UPPER(SIZE)),
	TRY_TO_DECIMAL(WEIGHT, 8, 2),
	TRY_TO_DECIMAL(UNIT_PRICE, 10, 2),
	TRY_TO_DECIMAL(COST, 10, 2),
	TRY_TO_DECIMAL(LIST_PRICE, 10, 2),
	CASE WHEN UPPER(DISCONTINUED) = 'TRUE' THEN TRUE ELSE FALSE END,
	'VALID',
	CURRENT_TIMESTAMP(),
	FILE_NAME
FROM %s
WHERE PRODUCT_NUMBER IS NOT NULL
  AND PRODUCT_NAME IS NOT NULL
  AND TRY_TO_DECIMAL(UNIT_PRICE, 10, 2) > 0
  AND TRY_TO_DECIMAL(COST, 10, 2) >= 0`,
		cleanTable, rawTable)
}

func customerDimMergeSQL(database, analyticsSchema, customersSchema string) string {
	return fmt.Sprintf(`MERGE INTO %[1]s.%[2]s.CUSTOMER_DIM tgt
USING (
	SELECT
		c.CUSTOMER_ID,
		c.CUSTOMER_NUMBER,
		COALESCE(c.COMPANY_NAME, c.FIRST_NAME || ' ' || c.LAST_NAME) AS CUSTOMER_NAME,
		c.CUSTOMER_TYPE,
		c.COMPANY_NAME,
		c.EMAIL,
		c.PHONE,
		c.BIRTH_DATE,
		c.GENDER,
		CASE
			WHEN c.BIRTH_DATE IS NOT NULL THEN
				CASE
					WHEN DATEDIFF('year', c.BIRTH_DATE, CURRENT_DATE()) < 25 THEN '18-24'
					WHEN DATEDIFF('year', c.BIRTH_DATE, CURRENT_DATE()) < 35 THEN '25-34'
					WHEN DATEDIFF('year', c.BIRTH_DATE, CURRENT_DATE()) < 45 THEN '35-44'
					WHEN DATEDIFF('year', c.BIRTH_DATE, CURRENT_DATE()) < 55 THEN '45-54'
					WHEN DATEDIFF('year', c.BIRTH_DATE, CURRENT_DATE()) < 65 THEN '55-64'
					ELSE '65+'
				END
			ELSE 'Unknown'
		END AS AGE_GROUP,
		c.MARITAL_STATUS,
		c.EDUCATION,
		c.OCCUPATION,
		c.ANNUAL_INCOME,
		CASE
			WHEN c.ANNUAL_INCOME < 30000 THEN 'Low'
			WHEN c.ANNUAL_INCOME < 75000 THEN 'Medium'
			WHEN c.ANNUAL_INCOME < 150000 THEN 'High'
			ELSE 'Very High'
		END AS INCOME_CATEGORY,
		cs.SEGMENT_NAME,
		ba.CITY AS BILLING_CITY,
		ba.STATE_PROVINCE AS BILLING_STATE,
		ba.COUNTRY AS BILLING_COUNTRY,
		sa.CITY AS SHIPPING_CITY,
		sa.STATE_PROVINCE AS SHIPPING_STATE,
		sa.COUNTRY AS SHIPPING_COUNTRY,
		c.REGISTRATION_DATE,
		c.STATUS,
		CURRENT_DATE() AS EFFECTIVE_DATE
	FROM %[1]s.%[3]s.CUSTOMERS c
	LEFT JOIN %[1]s.%[3]s.CUSTOMER_SEGMENTS cs ON c.SEGMENT_ID = cs.SEGMENT_ID
	LEFT JOIN %[1]s.%[3]s.ADDRESSES ba ON c.BILLING_ADDRESS_ID = ba.ADDRESS_ID
	LEFT JOIN %[1]s.%[3]s.ADDRESSES sa ON c.SHIPPING_ADDRESS_ID = sa.ADDRESS_ID
) src ON tgt.CUSTOMER_ID = src.CUSTOMER_ID AND tgt.IS_CURRENT = TRUE
WHEN MATCHED AND (
	tgt.CUSTOMER_NAME != src.CUSTOMER_NAME OR
	tgt.EMAIL != src.EMAIL OR
	tgt.ANNUAL_INCOME != src.ANNUAL_INCOME OR
	tgt.STATUS != src.STATUS
) THEN
	UPDATE SET IS_CURRENT = FALSE, EXPIRY_DATE = CURRENT_DATE()
WHEN NOT MATCHED THEN
	INSERT (CUSTOMER_ID, CUSTOMER_NUMBER, CUSTOMER_NAME, CUSTOMER_TYPE, COMPANY_NAME,
		EMAIL, PHONE, BIRTH_DATE, GENDER, AGE_GROUP, MARITAL_STATUS, EDUCATION, OCCUPATION,
		ANNUAL_INCOME, INCOME_CATEGORY, SEGMENT_NAME, BILLING_CITY, BILLING_STATE, BILLING_COUNTRY,
		SHIPPING_CITY, SHIPPING_STATE, SHIPPING_COUNTRY, REGISTRATION_DATE, STATUS,
		EFFECTIVE_DATE, IS_CURRENT, VERSION)
	VALUES (src.CUSTOMER_ID, src.CUSTOMER_NUMBER, src.CUSTOMER_NAME, src.CUSTOMER_TYPE, src.COMPANY_NAME,
		src.EMAIL, src.PHONE, src.BIRTH_DATE, src.GENDER, src.AGE_GROUP, src.MARITAL_STATUS,
		src.EDUCATION, src.OCCUPATION, src.ANNUAL_INCOME, src.INCOME_CATEGORY, src.SEGMENT_NAME,
		src.BILLING_CITY, src.BILLING_STATE, src.BILLING_COUNTRY, src.SHIPPING_CITY,
		src.SHIPPING_STATE, src.SHIPPING_COUNTRY, src.REGISTRATION_DATE, src.STATUS,
		src.EFFECTIVE_DATE, TRUE, 1)`,
		database, analyticsSchema, customersSchema)
}

func productDimMergeSQL(database, analyticsSchema, productsSchema string) string {
	return fmt.Sprintf(`MERGE INTO %[1]s.%[2]s.PRODUCT_DIM tgt
USING (
	SELECT
		p.PRODUCT_ID,
		p.PRODUCT_NUMBER,
		p.PRODUCT_NAME,
		c.CATEGORY_NAME,
		c.CATEGORY_NAME AS CATEGORY_HIERARCHY,
		s.SUPPLIER_NAME,
		s.COUNTRY AS SUPPLIER_COUNTRY,
		p.COLOR,
		p.SIZE,
		p.WEIGHT,
		p.UNIT_PRICE,
		p.COST,
		p.LIST_PRICE,
		p.PRODUCT_LINE,
		p.CLASS,
		p.STYLE,
		p.DISCONTINUED,
		CURRENT_DATE() AS EFFECTIVE_DATE
	FROM %[1]s.%[3]s.PRODUCTS p
	LEFT JOIN %[1]s.%[3]s.CATEGORIES c ON p.CATEGORY_ID = c.CATEGORY_ID
	LEFT JOIN %[1]s.%[3]s.SUPPLIERS s ON p.SUPPLIER_ID = s.SUPPLIER_ID
) src ON tgt.PRODUCT_ID = src.PRODUCT_ID AND tgt.IS_CURRENT = TRUE
WHEN MATCHED AND (
	tgt.PRODUCT_NAME != src.PRODUCT_NAME OR
	tgt.UNIT_PRICE != src.UNIT_PRICE OR
	tgt.COST != src.COST OR
	tgt.DISCONTINUED != src.DISCONTINUED
) THEN
	UPDATE SET IS_CURRENT = FALSE, EXPIRY_DATE = CURRENT_DATE()
WHEN NOT MATCHED THEN
	INSERT (PRODUCT_ID, PRODUCT_NUMBER, PRODUCT_NAME, CATEGORY_NAME, CATEGORY_HIERARCHY,
		SUPPLIER_NAME, SUPPLIER_COUNTRY, COLOR, SIZE, WEIGHT, UNIT_PRICE, COST, LIST_PRICE,
		PRODUCT_LINE, CLASS, STYLE, DISCONTINUED, EFFECTIVE_DATE, IS_CURRENT, VERSION)
	VALUES (src.PRODUCT_ID, src.PRODUCT_NUMBER, src.PRODUCT_NAME, src.CATEGORY_NAME, src.CATEGORY_HIERARCHY,
		src.SUPPLIER_NAME, src.SUPPLIER_COUNTRY, src.COLOR, src.SIZE, src.WEIGHT, src.UNIT_PRICE,
		src.COST, src.LIST_PRICE, src.PRODUCT_LINE, src.CLASS, src.STYLE, src.DISCONTINUED,
		src.EFFECTIVE_DATE, TRUE, 1)`,
		database, analyticsSchema, productsSchema)
}
